package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/example/room-reservation/internal/persistence"
)

func TestCatalogRepository_GetRoom(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	seedRoom(t, pool, "room-1")
	repo := NewCatalogRepository(pool)

	room, err := repo.GetRoom(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if room.Name != "Room room-1" || room.Capacity != 8 {
		t.Fatalf("unexpected room %+v", room)
	}

	_, err = repo.GetRoom(context.Background(), "missing")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogRepository_ListRooms_OrderedByName(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	seedRoom(t, pool, "b")
	seedRoom(t, pool, "a")
	repo := NewCatalogRepository(pool)

	rooms, err := repo.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != "a" || rooms[1].ID != "b" {
		t.Fatalf("unexpected order: %q, %q", rooms[0].ID, rooms[1].ID)
	}
}

func TestCatalogRepository_GetUser(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	seedUser(t, pool, "user-1")
	repo := NewCatalogRepository(pool)

	user, err := repo.GetUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if user.Email != "user-1@example.com" || user.Role != "member" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, err = repo.GetUser(context.Background(), "missing")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
