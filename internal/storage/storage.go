package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lastThreadFile = "last_thread.json"

// LastThreadData records the most recent conversation so it can be resumed.
type LastThreadData struct {
	ThreadID  string `json:"thread_id"`
	RmLoanID  string `json:"rm_loan_id,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// GetAppDataDir returns the application data directory, creating it if needed.
// An empty dataDir means ~/.mortgage-agent.
func GetAppDataDir(dataDir string) (string, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".mortgage-agent")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	return dataDir, nil
}

func GetLastThreadFilePath(dataDir string) (string, error) {
	appDataDir, err := GetAppDataDir(dataDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(appDataDir, lastThreadFile), nil
}

// SaveLastThread remembers threadID as the conversation to resume.
func SaveLastThread(dataDir, threadID, rmLoanID string) error {
	filePath, err := GetLastThreadFilePath(dataDir)
	if err != nil {
		return err
	}

	data := LastThreadData{
		ThreadID:  threadID,
		RmLoanID:  rmLoanID,
		UpdatedAt: time.Now().Unix(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal last thread: %w", err)
	}

	if err := os.WriteFile(filePath, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write last thread file: %w", err)
	}

	return nil
}

// GetLastThread returns the saved thread, or a zero value when none was saved.
func GetLastThread(dataDir string) (LastThreadData, error) {
	filePath, err := GetLastThreadFilePath(dataDir)
	if err != nil {
		return LastThreadData{}, err
	}

	if _, statErr := os.Stat(filePath); os.IsNotExist(statErr) {
		return LastThreadData{}, nil
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return LastThreadData{}, fmt.Errorf("failed to read last thread file: %w", err)
	}

	var data LastThreadData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return LastThreadData{}, fmt.Errorf("failed to unmarshal last thread: %w", err)
	}

	return data, nil
}
