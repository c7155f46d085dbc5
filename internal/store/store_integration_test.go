package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/repurpoai/pharmintel/internal/server"
	"github.com/repurpoai/pharmintel/internal/store"
)

func TestStoreAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("pharmintel"),
		tcPostgres.WithUsername("pharmintel"),
		tcPostgres.WithPassword("pharmintel"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://pharmintel:pharmintel@%s:%s/pharmintel?sslmode=disable", host, port.Port())
	if err := server.Migrate("file://../../migrations", dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.DB.Close()

	u, err := st.CreateUser(ctx, "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := st.CreateUser(ctx, "alice@example.com", "hash"); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	conv, err := st.StorePair(ctx, u.ID, "", "what is aspirin", "an NSAID")
	if err != nil {
		t.Fatalf("store pair: %v", err)
	}
	if conv.ID == "" || !conv.Title.Valid {
		t.Fatalf("unexpected conversation: %#v", conv)
	}

	msgs, err := st.ListConversationMessages(ctx, u.ID, conv.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %#v", msgs)
	}

	detached, err := st.CreateDetachedMessage(ctx, u.ID, "assistant", "reply without a thread", nil)
	if err != nil {
		t.Fatalf("create detached message: %v", err)
	}
	if detached.ConversationID != "" {
		t.Fatalf("expected no conversation linkage: %#v", detached)
	}

	other, err := st.CreateUser(ctx, "bob@example.com", "hash")
	if err != nil {
		t.Fatalf("create second user: %v", err)
	}
	if _, err := st.ListConversationMessages(ctx, other.ID, conv.ID, 0); !errors.Is(err, store.ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned for foreign conversation, got %v", err)
	}

	d, err := st.CreateDownload(ctx, u.ID, "report.pdf", "https://files/report.pdf", map[string]interface{}{"pages": 12.0})
	if err != nil {
		t.Fatalf("create download: %v", err)
	}
	if d.Meta["pages"].(float64) != 12 {
		t.Fatalf("metadata round trip failed: %#v", d.Meta)
	}
	downloads, err := st.ListDownloads(ctx, u.ID, 0)
	if err != nil || len(downloads) != 1 {
		t.Fatalf("list downloads: %v %#v", err, downloads)
	}
}
