package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/danktime/internal/adapters/mq/queue"
	"github.com/okian/danktime/internal/adapters/repository"
	service "github.com/okian/danktime/internal/app"
	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/internal/domain/clock"
	"github.com/okian/danktime/internal/domain/danktime"
	"github.com/okian/danktime/internal/domain/plugin"
	. "github.com/smartystreets/goconvey/convey"
)

const testChat int64 = -100123

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: map[int64][]string{}}
}

func (r *recordingSender) SendMessage(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

func (r *recordingSender) messages(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent[chatID]...)
}

// gateSender blocks its first send until release is closed.
type gateSender struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	sent    atomic.Int32
}

func newGateSender() *gateSender {
	return &gateSender{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateSender) SendMessage(_ context.Context, _ int64, _ string) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	g.sent.Add(1)
	return nil
}

// gateStore blocks its first save until release is closed.
type gateStore struct {
	*repository.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateStore() *gateStore {
	return &gateStore{
		MemoryStore: repository.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gateStore) Save(ctx context.Context, snap chat.Snapshot) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MemoryStore.Save(ctx, snap)
}

type namedPlugin struct {
	name string
	plugin.Func
}

func (p namedPlugin) Name() string { return p.name }

func amsterdam(hour, minute int) time.Time {
	loc, err := time.LoadLocation(chat.DefaultTimezone)
	if err != nil {
		panic(err)
	}
	return time.Date(2024, time.March, 12, hour, minute, 0, 0, loc)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
			service.WithDedupeSize(8),
		)
		ctx := context.Background()

		Convey("Then submitting before start fails", func() {
			err := svc.Submit(ctx, "1:1", queue.NewMessage(testChat, 1, "alice", "leet", 0))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When it is started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["chats"], ShouldEqual, 0)
			So(stats["plugins"], ShouldResemble, []string{"metrics", "audit"})

			Convey("Then it stops cleanly twice", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a running service at 13:37 in Amsterdam", t, func() {
		ctx := context.Background()
		clk := clock.NewManual(amsterdam(13, 37))
		sender := newRecordingSender()
		store := repository.NewMemoryStore()
		svc := service.New(
			service.WithClock(clk),
			service.WithSender(sender),
			service.WithStore(store),
			service.WithWorkerCount(2),
		)
		So(svc.Start(ctx), ShouldBeNil)

		dt, err := danktime.New(13, 37, []string{"leet"}, 5)
		So(err, ShouldBeNil)
		So(svc.AddDankTime(ctx, testChat, dt), ShouldBeNil)
		changed, err := svc.SetRunning(ctx, testChat, true)
		So(err, ShouldBeNil)
		So(changed, ShouldBeTrue)

		now := clk.Now().Unix()

		Convey("When the same transport message arrives twice", func() {
			So(svc.Submit(ctx, "-100123:1", queue.NewMessage(testChat, 1, "alice", "LEET", now)), ShouldBeNil)
			err := svc.Submit(ctx, "-100123:1", queue.NewMessage(testChat, 1, "alice", "LEET", now))
			So(errors.Is(err, service.ErrDuplicate), ShouldBeTrue)
			So(svc.Submit(ctx, "-100123:2", queue.NewMessage(testChat, 2, "bob", "leet", now)), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is scored once and the replies are sent", func() {
				So(sender.messages(testChat), ShouldResemble, []string{"👏 alice was the first to score!"})
			})
		})

		Convey("When messages are processed and persisted", func() {
			out, err := svc.ProcessMessage(ctx, queue.NewMessage(testChat, 1, "alice", "leet", now))
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []string{"👏 alice was the first to score!"})
			_, err = svc.ProcessMessage(ctx, queue.NewMessage(testChat, 2, "bob", "leet", now))
			So(err, ShouldBeNil)
			So(svc.PersistDirty(ctx), ShouldBeNil)

			Convey("Then the standings reflect the scores", func() {
				board, err := svc.ChatLeaderboard(ctx, testChat)
				So(err, ShouldBeNil)
				entries := board.Entries()
				So(len(entries), ShouldEqual, 2)
				So(entries[0].Name, ShouldEqual, "alice")
				So(entries[0].Score, ShouldEqual, 10)
				So(entries[1].Name, ShouldEqual, "bob")
				So(entries[1].Score, ShouldEqual, 5)
			})

			Convey("Then the snapshot is in the store", func() {
				snap, err := store.Load(ctx, testChat)
				So(err, ShouldBeNil)
				So(snap.Running, ShouldBeTrue)
				So(len(snap.Users), ShouldEqual, 2)
				So(snap.LastHour, ShouldEqual, 13)
				So(snap.LastMinute, ShouldEqual, 37)
			})

			Convey("Then a restarted service restores the chat", func() {
				So(svc.PersistDirty(ctx), ShouldBeNil)
				restored := service.New(service.WithClock(clk), service.WithStore(store))
				So(restored.Start(ctx), ShouldBeNil)
				So(restored.ChatIDs(), ShouldResemble, []int64{testChat})

				board, err := restored.ChatLeaderboard(ctx, testChat)
				So(err, ShouldBeNil)
				So(board.Len(), ShouldEqual, 2)
			})
		})

		Reset(func() {
			_ = svc.Stop(ctx)
		})
	})
}

func TestService_Commands(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		clk := clock.NewManual(amsterdam(10, 0))
		svc := service.New(service.WithClock(clk))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("Then unknown chats are not found by the read-only lookup", func() {
			_, err := svc.ChatLeaderboard(ctx, 42)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then settings can be read and changed", func() {
			So(svc.SetSetting(ctx, testChat, "Multiplier", "3"), ShouldBeNil)
			settings, err := svc.Settings(ctx, testChat)
			So(err, ShouldBeNil)
			So(settings, ShouldContain, chat.SettingValue{Name: chat.SettingMultiplier, Value: "3"})

			err = svc.SetSetting(ctx, testChat, "nope", "1")
			So(errors.Is(err, chat.ErrUnknownSetting), ShouldBeTrue)
		})

		Convey("Then dank times can be added and removed", func() {
			dt, err := danktime.New(16, 20, []string{"blaze"}, 3)
			So(err, ShouldBeNil)
			So(svc.AddDankTime(ctx, testChat, dt), ShouldBeNil)

			normal, random, err := svc.DankTimes(ctx, testChat)
			So(err, ShouldBeNil)
			So(len(normal), ShouldEqual, 1)
			So(len(random), ShouldBeLessThanOrEqualTo, 1)

			removed, err := svc.RemoveDankTime(ctx, testChat, 16, 20)
			So(err, ShouldBeNil)
			So(removed, ShouldBeTrue)
			removed, err = svc.RemoveDankTime(ctx, testChat, 16, 20)
			So(err, ShouldBeNil)
			So(removed, ShouldBeFalse)
		})

		Convey("Then the running state only reports real changes", func() {
			changed, err := svc.SetRunning(ctx, testChat, false)
			So(err, ShouldBeNil)
			So(changed, ShouldBeFalse)
			changed, err = svc.SetRunning(ctx, testChat, true)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)
			So(svc.GetStats()["runningChats"], ShouldEqual, 1)
		})

		Convey("Then a reset asks the requester for confirmation", func() {
			dt, err := danktime.New(10, 0, []string{"ten"}, 4)
			So(err, ShouldBeNil)
			So(svc.AddDankTime(ctx, testChat, dt), ShouldBeNil)
			_, err = svc.SetRunning(ctx, testChat, true)
			So(err, ShouldBeNil)
			_, err = svc.ProcessMessage(ctx, queue.NewMessage(testChat, 7, "carol", "ten", clk.Now().Unix()))
			So(err, ShouldBeNil)

			So(svc.RequestReset(ctx, testChat, 7), ShouldBeNil)
			out, err := svc.ProcessMessage(ctx, queue.NewMessage(testChat, 7, "carol", "yes", clk.Now().Unix()))
			So(err, ShouldBeNil)
			So(len(out), ShouldBeGreaterThan, 0)
			So(out[0], ShouldContainSubstring, chat.TitleFinalLeaderboard)

			board, err := svc.ChatLeaderboard(ctx, testChat)
			So(err, ShouldBeNil)
			So(board.Entries()[0].Score, ShouldEqual, 0)
		})

		Convey("Then departed users are removed", func() {
			dt, err := danktime.New(10, 0, []string{"ten"}, 4)
			So(err, ShouldBeNil)
			So(svc.AddDankTime(ctx, testChat, dt), ShouldBeNil)
			_, err = svc.SetRunning(ctx, testChat, true)
			So(err, ShouldBeNil)
			_, err = svc.ProcessMessage(ctx, queue.NewMessage(testChat, 7, "carol", "ten", clk.Now().Unix()))
			So(err, ShouldBeNil)

			removed, err := svc.RemoveUser(ctx, testChat, 7)
			So(err, ShouldBeNil)
			So(removed, ShouldBeTrue)

			removed, err = svc.RemoveUser(ctx, 99, 7)
			So(err, ShouldBeNil)
			So(removed, ShouldBeFalse)
		})

		Convey("Then a forgotten chat is gone", func() {
			_, err := svc.Leaderboard(ctx, testChat)
			So(err, ShouldBeNil)
			So(svc.ForgetChat(ctx, testChat), ShouldBeNil)
			So(svc.ChatIDs(), ShouldBeEmpty)
		})

		Convey("Then chat id zero is rejected", func() {
			_, err := svc.Leaderboard(ctx, 0)
			So(errors.Is(err, chat.ErrInvalidChatID), ShouldBeTrue)
		})
	})
}

func TestService_Plugins(t *testing.T) {
	Convey("Given a service with an extra plugin", t, func() {
		ctx := context.Background()
		clk := clock.NewManual(amsterdam(9, 0))
		echo := namedPlugin{name: "echo", Func: func(_ context.Context, ev plugin.Event) []string {
			if ev.Kind == plugin.EventPreMessage {
				return []string{"pre:" + ev.Text}
			}
			return nil
		}}
		svc := service.New(service.WithClock(clk), service.WithPlugins(echo))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("Then its output is part of the replies", func() {
			out, err := svc.ProcessMessage(ctx, queue.NewMessage(testChat, 1, "alice", "hello", clk.Now().Unix()))
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []string{"pre:hello"})
			So(svc.GetStats()["plugins"], ShouldResemble, []string{"metrics", "audit", "echo"})
		})
	})
}

func TestService_StopDrainsQueue(t *testing.T) {
	Convey("Given a service started with a context that is later cancelled", t, func() {
		clk := clock.NewManual(amsterdam(9, 0))
		var seen atomic.Int32
		counter := namedPlugin{name: "counter", Func: func(_ context.Context, ev plugin.Event) []string {
			if ev.Kind == plugin.EventPreMessage {
				seen.Add(1)
				return []string{"seen:" + ev.Text}
			}
			return nil
		}}
		sender := newGateSender()
		svc := service.New(
			service.WithClock(clk),
			service.WithSender(sender),
			service.WithPlugins(counter),
			service.WithWorkerCount(1),
		)
		startCtx, cancel := context.WithCancel(context.Background())
		So(svc.Start(startCtx), ShouldBeNil)

		now := clk.Now().Unix()
		texts := []string{"a", "b", "c", "d", "e"}
		for i, text := range texts {
			m := queue.NewMessage(testChat, int64(i+1), "user", text, now)
			So(svc.Submit(context.Background(), fmt.Sprintf("%d:%d", testChat, i), m), ShouldBeNil)
		}

		Convey("When the context is cancelled while a reply is in flight and the service stops", func() {
			<-sender.entered
			cancel()
			close(sender.release)

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer stopCancel()
			err := svc.Stop(stopCtx)

			Convey("Then every queued message was still processed and answered", func() {
				So(err, ShouldBeNil)
				So(seen.Load(), ShouldEqual, int32(len(texts)))
				So(sender.sent.Load(), ShouldEqual, int32(len(texts)))
			})
		})

		Reset(cancel)
	})
}

func TestService_PersistDirtyOrder(t *testing.T) {
	Convey("Given a service whose first save is slow", t, func() {
		ctx := context.Background()
		store := newGateStore()
		svc := service.New(service.WithClock(clock.NewManual(amsterdam(9, 0))), service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		_, err := svc.SetRunning(ctx, testChat, true)
		So(err, ShouldBeNil)

		Convey("When the chat changes while that save is pending and is persisted again", func() {
			var wg sync.WaitGroup
			errs := make([]error, 2)
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[0] = svc.PersistDirty(ctx)
			}()
			<-store.entered

			_, err := svc.SetRunning(ctx, testChat, false)
			So(err, ShouldBeNil)
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[1] = svc.PersistDirty(ctx)
			}()
			time.Sleep(20 * time.Millisecond)
			close(store.release)
			wg.Wait()

			Convey("Then the store holds the latest state", func() {
				So(errs[0], ShouldBeNil)
				So(errs[1], ShouldBeNil)
				snap, err := store.Load(ctx, testChat)
				So(err, ShouldBeNil)
				So(snap.Running, ShouldBeFalse)
			})
		})
	})
}
