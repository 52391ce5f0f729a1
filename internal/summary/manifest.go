package summary

import (
	"time"

	"github.com/KaramelBytes/cosinor-cli/internal/utils"
	"github.com/google/uuid"
)

// Manifest records what a batch run read, produced and skipped.
type Manifest struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Finished  time.Time      `json:"finished_at"`
	InputDir  string         `json:"input_dir"`
	Settings  map[string]any `json:"settings"`
	Inputs    []string       `json:"inputs"`
	Outputs   []string       `json:"outputs"`
	Warnings  []string       `json:"warnings,omitempty"`
	Genes     []Row          `json:"genes"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(inputDir string, settings map[string]any) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		InputDir:  inputDir,
		Settings:  settings,
	}
}

// Write stamps the finish time and saves the manifest as indented JSON.
func (m *Manifest) Write(path string) error {
	m.Finished = time.Now()
	b, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}
