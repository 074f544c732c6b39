package layout

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/stflabs/warehouse-core/migrations"

	"github.com/stflabs/warehouse-core/internal/infrastructure/database"
)

// openSeededDB opens a temp database with the full schema and seed data.
func openSeededDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "layout.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSlotRepository_SeededGrid(t *testing.T) {
	db := openSeededDB(t)
	repo := NewSQLiteSlotRepository(db.DB)
	ctx := context.Background()

	slots, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(slots) != 9 {
		t.Fatalf("List() returned %d slots, want 9", len(slots))
	}

	// Seeded coordinates must agree with the static map.
	for _, slot := range slots {
		want, err := SlotPosition(slot.Name)
		if err != nil {
			t.Fatalf("seeded slot %q not in static map", slot.Name)
		}
		if slot.Position != want {
			t.Errorf("slot %q position = %v, want %v", slot.Name, slot.Position, want)
		}
		if slot.Occupied() {
			t.Errorf("slot %q seeded occupied", slot.Name)
		}
	}
}

func TestSlotRepository_OccupancyLifecycle(t *testing.T) {
	db := openSeededDB(t)
	repo := NewSQLiteSlotRepository(db.DB)
	ctx := context.Background()

	if err := repo.SetOccupant(ctx, "A1", "carrier-7"); err != nil {
		t.Fatalf("SetOccupant() error = %v", err)
	}

	slot, err := repo.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !slot.Occupied() || *slot.Occupant != "carrier-7" {
		t.Errorf("occupant = %v, want carrier-7", slot.Occupant)
	}

	// Double store must be rejected.
	if err := repo.SetOccupant(ctx, "A1", "carrier-8"); !errors.Is(err, ErrSlotOccupied) {
		t.Errorf("second SetOccupant() error = %v, want ErrSlotOccupied", err)
	}

	if err := repo.ClearOccupant(ctx, "A1"); err != nil {
		t.Fatalf("ClearOccupant() error = %v", err)
	}

	// Double retrieve must be rejected.
	if err := repo.ClearOccupant(ctx, "A1"); !errors.Is(err, ErrSlotEmpty) {
		t.Errorf("second ClearOccupant() error = %v, want ErrSlotEmpty", err)
	}
}

func TestSlotRepository_UnknownSlot(t *testing.T) {
	db := openSeededDB(t)
	repo := NewSQLiteSlotRepository(db.DB)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "Z9"); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Get(Z9) error = %v, want ErrSlotNotFound", err)
	}
	if err := repo.SetOccupant(ctx, "Z9", "carrier-1"); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("SetOccupant(Z9) error = %v, want ErrSlotNotFound", err)
	}
}
