// Package syncq is a local queue of transfers written while the API was
// unreachable. Every queued transfer carries its idempotency key from the
// moment it is enqueued, so replaying the queue twice cannot double-spend.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type Transfer struct {
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".mint")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Transfer, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Transfer{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Transfer{}, nil
	}
	var out []Transfer
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(transfers []Transfer) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(transfers, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(t Transfer) error {
	transfers, err := Load()
	if err != nil {
		return err
	}
	transfers = append(transfers, t)
	return Save(transfers)
}
