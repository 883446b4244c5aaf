package apimodels

import (
	"github.com/USA-RedDragon/rpc-tester/internal/db/models"
	"github.com/USA-RedDragon/rpc-tester/internal/params"
	"github.com/USA-RedDragon/rpc-tester/internal/registry"
	"github.com/USA-RedDragon/rpc-tester/internal/sandbox"
)

type GETMethods struct {
	Methods []registry.MethodSpec `json:"methods"`
}

type POSTSessionResponse struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

type PUTEndpoint struct {
	Endpoint string `json:"endpoint"`
}

type EndpointResponse struct {
	Endpoint string `json:"endpoint"`
}

type POSTSend struct {
	Method string        `json:"method"`
	Custom bool          `json:"custom"`
	Fields params.Fields `json:"fields"`
	// Params is the hand-written JSON array for custom methods.
	Params string `json:"params"`
}

type SandboxResponse struct {
	Script   string            `json:"script"`
	Examples []sandbox.Example `json:"examples,omitempty"`
}

type POSTSandboxRun struct {
	Script string `json:"script"`
}

type GETScripts struct {
	Scripts []string `json:"scripts"`
}

type ScriptResponse struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

type PUTScript struct {
	Script string `json:"script"`
}

type GETHistory struct {
	Entries []models.HistoryEntry `json:"entries"`
}
