// /internal/storage/storage.go
package storage

import (
	"fmt"
	"time"

	"github.com/keshon/rickbot/datastore"
)

const commandHistoryLimit int = 20

// DirectKey is the record key used for invocations outside any server.
const DirectKey = "dm"

type Storage struct {
	ds *datastore.DataStore
}

type CommandHistoryRecord struct {
	InvocationID string    `json:"invocation_id"`
	ChannelID    string    `json:"channel_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Command      string    `json:"command"`
	Param        string    `json:"param,omitempty"`
	Datetime     time.Time `json:"datetime"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func recordKey(guildID string) string {
	if guildID == "" {
		return DirectKey
	}
	return guildID
}

// AppendCommandToHistory appends a record and keeps only the newest commandHistoryLimit entries.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	var record Record
	return s.ds.Update(recordKey(guildID), &record, func() error {
		record.CommandsHistoryList = append(record.CommandsHistoryList, command)
		if n := len(record.CommandsHistoryList); n > commandHistoryLimit {
			record.CommandsHistoryList = record.CommandsHistoryList[n-commandHistoryLimit:]
		}
		return nil
	})
}

// FetchCommandHistory returns the stored history oldest first.
func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	var record Record
	if _, err := s.ds.Get(recordKey(guildID), &record); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return record.CommandsHistoryList, nil
}
