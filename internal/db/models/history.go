package models

import (
	"time"

	"github.com/mattn/go-nulltype"
	"gorm.io/gorm"
)

// RawJSON is stored as text and emitted verbatim.
type RawJSON string

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

// HistoryEntry is one finished round trip. Entries outlive their session.
type HistoryEntry struct {
	ID              uint                `json:"id" gorm:"primaryKey"`
	SessionID       string              `json:"sessionId" gorm:"index"`
	Source          string              `json:"source"`
	Endpoint        string              `json:"endpoint"`
	Method          string              `json:"method" gorm:"index"`
	Request         RawJSON             `json:"request" gorm:"type:text"`
	StatusCode      int                 `json:"statusCode"`
	Response        RawJSON             `json:"response" gorm:"type:text"`
	RPCErrorCode    nulltype.NullInt64  `json:"rpcErrorCode" gorm:"type:bigint"`
	RPCErrorMessage nulltype.NullString `json:"rpcErrorMessage" gorm:"type:text"`
	TransportError  nulltype.NullString `json:"transportError" gorm:"type:text"`
	Warning         string              `json:"warning,omitempty"`
	DurationMS      int64               `json:"durationMs"`
	CreatedAt       time.Time           `json:"createdAt" gorm:"index"`
}

func (h HistoryEntry) TableName() string {
	return "history_entries"
}

type HistoryFilter struct {
	SessionID string
	Method    string
	Limit     int
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// ListHistory returns the newest entries first.
func ListHistory(db *gorm.DB, filter HistoryFilter) ([]HistoryEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	query := db.Model(&HistoryEntry{})
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	var entries []HistoryEntry
	err := query.Order("id desc").Limit(limit).Find(&entries).Error
	return entries, err
}

func FindHistoryEntry(db *gorm.DB, id uint) (HistoryEntry, error) {
	var entry HistoryEntry
	err := db.First(&entry, id).Error
	return entry, err
}

func CountHistory(db *gorm.DB) (int, error) {
	var count int64
	err := db.Model(&HistoryEntry{}).Count(&count).Error
	return int(count), err
}

func DeleteHistoryBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("created_at < ?", cutoff).Delete(&HistoryEntry{})
	return res.RowsAffected, res.Error
}
