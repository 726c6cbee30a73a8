package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/testkit"
	"gorm.io/gorm"
)

func newMessage(from, to, text string, at time.Time) *model.Message {
	return &model.Message{SenderID: from, ReceiverID: to, Text: testkit.StrPtr(text), CreatedAt: at}
}

func TestMessageRepositoryConversationAndLast(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testkit.NewDB(t))
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, m := range []*model.Message{
		newMessage("alice", "bob", "one", base),
		newMessage("bob", "alice", "two", base.Add(time.Minute)),
		newMessage("alice", "carol", "other", base.Add(2*time.Minute)),
		newMessage("alice", "bob", "three", base.Add(3*time.Minute)),
	} {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if m.ID == "" {
			t.Fatalf("create %d: id not assigned", i)
		}
	}

	msgs, err := repo.ListConversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len=%d want 3", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if *msgs[i].Text != want {
			t.Fatalf("msgs[%d]=%q want %q", i, *msgs[i].Text, want)
		}
	}

	last, err := repo.LastInConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || *last.Text != "three" {
		t.Fatalf("last=%+v", last)
	}

	none, err := repo.LastInConversation(ctx, "bob", "carol")
	if err != nil || none != nil {
		t.Fatalf("expected no message, got %+v err=%v", none, err)
	}
}

func TestMessageRepositoryKeepsInsertionOrderOnTimestampTies(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testkit.NewDB(t))
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	texts := []string{"m0", "m1", "m2", "m3"}
	for i, text := range texts {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		if err := repo.Create(ctx, newMessage(from, to, text, at)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	msgs, err := repo.ListConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("len=%d want %d", len(msgs), len(texts))
	}
	for i, want := range texts {
		if *msgs[i].Text != want {
			t.Fatalf("msgs[%d]=%q want %q", i, *msgs[i].Text, want)
		}
	}

	last, err := repo.LastInConversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || *last.Text != "m3" {
		t.Fatalf("last=%+v", last)
	}
}

func TestMessageRepositoryMarkSeenOnlyTouchesUnseen(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testkit.NewDB(t))
	now := time.Now().UTC()
	for _, m := range []*model.Message{
		newMessage("alice", "bob", "a", now),
		newMessage("alice", "bob", "b", now),
		newMessage("bob", "alice", "c", now),
	} {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	unread, err := repo.CountUnread(ctx, "alice", "bob")
	if err != nil || unread != 2 {
		t.Fatalf("unread=%d err=%v", unread, err)
	}
	n, err := repo.MarkSeen(ctx, "alice", "bob", now)
	if err != nil || n != 2 {
		t.Fatalf("first mark n=%d err=%v", n, err)
	}
	n, err = repo.MarkSeen(ctx, "alice", "bob", now.Add(time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("second mark n=%d err=%v", n, err)
	}
	unread, _ = repo.CountUnread(ctx, "bob", "alice")
	if unread != 1 {
		t.Fatalf("reverse direction should stay unread, got %d", unread)
	}
}

func TestMessageRepositorySoftDeleteKeepsRow(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testkit.NewDB(t))
	orig := &model.Message{SenderID: "alice", ReceiverID: "bob", Text: testkit.StrPtr("secret"), Image: testkit.StrPtr("https://cdn/x.jpg")}
	if err := repo.Create(ctx, orig); err != nil {
		t.Fatal(err)
	}

	if err := repo.SoftDelete(ctx, orig.ID, time.Now().UTC()); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	got, err := repo.FindByID(ctx, orig.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.IsDeleted || got.DeletedAt == nil || got.Text != nil || got.Image != nil || got.Video != nil {
		t.Fatalf("not scrubbed: %+v", got)
	}

	previews, err := repo.FindPreviews(ctx, []string{orig.ID, "missing"})
	if err != nil {
		t.Fatalf("previews: %v", err)
	}
	if p := previews[orig.ID]; p == nil || !p.IsDeleted || p.Text != nil {
		t.Fatalf("preview=%+v", p)
	}
	if _, ok := previews["missing"]; ok {
		t.Fatalf("unexpected preview for missing id")
	}

	if err := repo.SoftDelete(ctx, "nope", time.Now()); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err=%v want record not found", err)
	}
}

func TestRepositoriesWithoutDB(t *testing.T) {
	ctx := context.Background()
	if err := NewMessageRepository(nil).Create(ctx, &model.Message{}); !errors.Is(err, ErrDBNotReady) {
		t.Fatalf("message repo err=%v", err)
	}
	if _, err := NewUserRepository(nil).FindByID(ctx, "x"); !errors.Is(err, ErrDBNotReady) {
		t.Fatalf("user repo err=%v", err)
	}
}
