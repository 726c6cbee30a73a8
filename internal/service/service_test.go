package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/media"
	"github.com/shinyyama/directchat/internal/presence"
	"github.com/shinyyama/directchat/internal/repository"
	"github.com/shinyyama/directchat/internal/testkit"
	"gorm.io/gorm"
)

type emitted struct {
	connID  string
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (f *fakeEmitter) Emit(connID, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, emitted{connID: connID, event: event, payload: payload})
	return nil
}

func (f *fakeEmitter) all() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitted(nil), f.events...)
}

type fakeUploader struct {
	calls []media.Kind
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, kind media.Kind, owner, payload string) (string, error) {
	f.calls = append(f.calls, kind)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/" + string(kind) + "/" + owner, nil
}

type fixture struct {
	db       *gorm.DB
	messages repository.MessageRepository
	users    repository.UserRepository
	registry *presence.Registry
	emitter  *fakeEmitter
	uploader *fakeUploader
	svc      MessageService
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	conn := testkit.NewDB(t)
	testkit.SeedUsers(t, conn, users...)
	f := &fixture{
		db:       conn,
		messages: repository.NewMessageRepository(conn),
		users:    repository.NewUserRepository(conn),
		registry: presence.NewRegistry(),
		emitter:  &fakeEmitter{},
		uploader: &fakeUploader{},
	}
	f.svc = NewMessageService(f.messages, f.users, f.registry, f.emitter, f.uploader, zerolog.Nop())
	return f
}
