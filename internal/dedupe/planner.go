package dedupe

import (
	"context"
	"log/slog"

	"github.com/sydlexius/trackmend/internal/filesystem"
)

// RecordRemover deletes library records.
type RecordRemover interface {
	Delete(ctx context.Context, id string) error
}

// PlanItem is one copy scheduled for removal.
type PlanItem struct {
	RecordID   string `json:"record_id"`
	Path       string `json:"path"`
	FileSize   int64  `json:"file_size"`
	Format     string `json:"format"`
	KeeperID   string `json:"keeper_id"`
	KeeperPath string `json:"keeper_path"`
	// Destination is where the copy is moved when a quarantine is set.
	Destination string `json:"destination,omitempty"`
}

// RemovalError records a copy that could not be removed.
type RemovalError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Plan summarizes a removal pass. In a dry run it describes what would be
// removed; after Execute it describes what was removed.
type Plan struct {
	DryRun          bool           `json:"dry_run"`
	FilesRemoved    int            `json:"files_removed"`
	SpaceFreedBytes int64          `json:"space_freed_bytes"`
	Items           []PlanItem     `json:"items"`
	Errors          []RemovalError `json:"errors"`
}

// Planner removes every non-keeper member of duplicate groups.
type Planner struct {
	records       RecordRemover
	logger        *slog.Logger
	libraryRoot   string
	quarantineDir string
	removeFile    func(path string) error
	moveFile      func(src, dst string) error
}

// NewPlanner creates a Planner that deletes records through records.
func NewPlanner(records RecordRemover, logger *slog.Logger) *Planner {
	return &Planner{
		records:    records,
		logger:     logger.With(slog.String("component", "removal-planner")),
		removeFile: filesystem.RemoveFile,
		moveFile:   filesystem.MoveFile,
	}
}

// SetQuarantine makes Execute move removed files under dir, mirroring their
// location relative to libraryRoot, instead of deleting them. An empty dir
// restores deletion.
func (p *Planner) SetQuarantine(libraryRoot, dir string) {
	p.libraryRoot = libraryRoot
	p.quarantineDir = dir
}

// DryRun computes the plan for groups without touching disk or the store.
func (p *Planner) DryRun(groups []Group) *Plan {
	plan := newPlan(true)
	for _, g := range groups {
		for _, item := range p.itemsFor(g) {
			plan.Items = append(plan.Items, item)
			plan.FilesRemoved++
			plan.SpaceFreedBytes += item.FileSize
		}
	}
	return plan
}

// Execute removes the file and then the library record of every non-keeper
// member. A failure on one member is recorded and the batch continues.
// Cancellation is checked between groups; on cancellation the partial plan
// is returned together with the context error.
func (p *Planner) Execute(ctx context.Context, groups []Group) (*Plan, error) {
	plan := newPlan(false)
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			p.logger.Info("removal canceled", "files_removed", plan.FilesRemoved)
			return plan, err
		}
		for _, item := range p.itemsFor(g) {
			if err := p.disposeFile(item); err != nil {
				p.logger.Warn("removing duplicate file", "path", item.Path, "error", err)
				plan.Errors = append(plan.Errors, RemovalError{Path: item.Path, Message: err.Error()})
				continue
			}
			if err := p.records.Delete(ctx, item.RecordID); err != nil {
				p.logger.Warn("removing duplicate record", "path", item.Path, "record_id", item.RecordID, "error", err)
				plan.Errors = append(plan.Errors, RemovalError{Path: item.Path, Message: err.Error()})
				continue
			}
			plan.Items = append(plan.Items, item)
			plan.FilesRemoved++
			plan.SpaceFreedBytes += item.FileSize
		}
	}
	p.logger.Info("removal complete",
		"files_removed", plan.FilesRemoved,
		"space_freed_bytes", plan.SpaceFreedBytes,
		"errors", len(plan.Errors))
	return plan, nil
}

func (p *Planner) disposeFile(item PlanItem) error {
	if item.Destination == "" {
		return p.removeFile(item.Path)
	}
	return p.moveFile(item.Path, item.Destination)
}

func (p *Planner) itemsFor(g Group) []PlanItem {
	if len(g.Members) < 2 {
		return nil
	}
	keeper := g.Keeper()
	items := make([]PlanItem, 0, len(g.Members)-1)
	for _, m := range g.Removable() {
		item := PlanItem{
			RecordID:   m.ID,
			Path:       m.FilePath,
			FileSize:   m.FileSize,
			Format:     m.Format,
			KeeperID:   keeper.ID,
			KeeperPath: keeper.FilePath,
		}
		if p.quarantineDir != "" {
			item.Destination = filesystem.QuarantinePath(p.libraryRoot, p.quarantineDir, m.FilePath)
		}
		items = append(items, item)
	}
	return items
}

func newPlan(dryRun bool) *Plan {
	return &Plan{
		DryRun: dryRun,
		Items:  []PlanItem{},
		Errors: []RemovalError{},
	}
}
