// Package identity supplies the Agent Loop and Scheduler with the
// identity-derived system prompt and heartbeat checklist referenced by
// SPEC_FULL.md §4.2+ and §4.5+. Grounded on the teacher's IDENTITY.md
// loading idiom (internal/agent/identity.go), generalized from the
// teacher's fixed persona fields into free-form prompt and checklist text.
package identity

import (
	"os"
	"path/filepath"
	"strings"
)

// Provider is the contract the Agent Loop and Scheduler depend on.
type Provider interface {
	// SystemPrompt returns the text to prepend as the System message of
	// every Agent Loop turn.
	SystemPrompt() string

	// HeartbeatChecklist returns the bullet items a Heartbeat turn's user
	// prompt should list. An empty slice means "use the default prompt".
	HeartbeatChecklist() []string
}

// StaticProvider is a fixed, in-memory Provider for tests and for
// deployments that configure identity inline rather than from files.
type StaticProvider struct {
	Prompt    string
	Checklist []string
}

// SystemPrompt implements Provider.
func (s StaticProvider) SystemPrompt() string { return s.Prompt }

// HeartbeatChecklist implements Provider.
func (s StaticProvider) HeartbeatChecklist() []string { return s.Checklist }

const (
	// SystemPromptFilename is the file read for SystemPrompt.
	SystemPromptFilename = "system_prompt.md"
	// ChecklistFilename is the file read for HeartbeatChecklist, one item
	// per non-empty, non-comment line.
	ChecklistFilename = "heartbeat_checklist.md"
)

// FileProvider reads identity files from a configured directory on every
// call — it does not cache, so process-external edits take effect on the
// next turn (hot-reload of the directory's mtime is out of scope per
// spec.md §1's Non-goals; this is a side effect of reading fresh each
// time, not a watcher).
type FileProvider struct {
	Dir string
}

// NewFileProvider constructs a FileProvider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// SystemPrompt reads system_prompt.md from Dir. A missing or empty file
// yields an empty prompt rather than an error: callers compose this into
// a larger message and an identity file is optional.
func (f *FileProvider) SystemPrompt() string {
	content, err := os.ReadFile(filepath.Join(f.Dir, SystemPromptFilename))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

// HeartbeatChecklist reads heartbeat_checklist.md from Dir, one checklist
// item per non-empty, non-comment (#) line, with leading list markers
// ("-", "*") stripped.
func (f *FileProvider) HeartbeatChecklist() []string {
	content, err := os.ReadFile(filepath.Join(f.Dir, ChecklistFilename))
	if err != nil {
		return nil
	}
	var items []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

// File lists the identity files as seen by the HTTP control plane's
// GET /identity and GET /identity/{name} endpoints.
type File struct {
	Name    string
	Content string
}

// List returns every known identity file under Dir, present or not (a
// missing file is reported with empty Content so the gateway can still
// offer it for creation via PUT).
func (f *FileProvider) List() []File {
	return []File{
		{Name: SystemPromptFilename, Content: f.readRaw(SystemPromptFilename)},
		{Name: ChecklistFilename, Content: f.readRaw(ChecklistFilename)},
	}
}

// Get returns one identity file's raw content by name.
func (f *FileProvider) Get(name string) (File, bool) {
	if name != SystemPromptFilename && name != ChecklistFilename {
		return File{}, false
	}
	return File{Name: name, Content: f.readRaw(name)}, true
}

// Put overwrites one identity file's content by name.
func (f *FileProvider) Put(name, content string) error {
	if name != SystemPromptFilename && name != ChecklistFilename {
		return os.ErrInvalid
	}
	return os.WriteFile(filepath.Join(f.Dir, name), []byte(content), 0o644)
}

func (f *FileProvider) readRaw(name string) string {
	content, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		return ""
	}
	return string(content)
}
