package chat_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/internal/domain/clock"
	"github.com/okian/danktime/internal/domain/danktime"
	"github.com/okian/danktime/internal/domain/plugin"
	"github.com/okian/danktime/internal/domain/user"
	. "github.com/smartystreets/goconvey/convey"
)

const chatID int64 = -1001

type recorder struct {
	events []plugin.Event
}

func (r *recorder) Trigger(_ context.Context, ev plugin.Event) []string {
	r.events = append(r.events, ev)
	switch ev.Kind {
	case plugin.EventPreMessage:
		return []string{"pre"}
	case plugin.EventPostMessage:
		return []string{"post:" + ev.Text}
	case plugin.EventUserScoreChanged:
		return []string{fmt.Sprintf("%s:%d", ev.Reason, ev.Delta)}
	case plugin.EventLeaderboardReset:
		return []string{"reset"}
	}
	return nil
}

func (r *recorder) kinds() []plugin.EventKind {
	out := make([]plugin.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// zeroSource always draws zero, so every random slot lands on 00:00.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func amsterdam(hour, minute int) time.Time {
	loc, err := time.LoadLocation(chat.DefaultTimezone)
	if err != nil {
		panic(err)
	}
	return time.Date(2024, time.March, 10, hour, minute, 20, 0, loc)
}

func mustDankTime(hour, minute int, points int, texts ...string) *danktime.DankTime {
	dt, err := danktime.New(hour, minute, texts, points)
	if err != nil {
		panic(err)
	}
	return dt
}

func newChat(clk clock.Clock, opts ...chat.Option) (*chat.Chat, *recorder) {
	rec := &recorder{}
	c, err := chat.New(chatID, append([]chat.Option{chat.WithClock(clk), chat.WithTrigger(rec)}, opts...)...)
	if err != nil {
		panic(err)
	}
	return c, rec
}

func score(c *chat.Chat, id int64) int {
	u, ok := c.User(id)
	if !ok {
		return 0
	}
	return u.Score
}

func TestNew(t *testing.T) {
	Convey("Given a chat id", t, func() {
		Convey("When it is zero", func() {
			c, err := chat.New(0)
			So(c, ShouldBeNil)
			So(errors.Is(err, chat.ErrInvalidChatID), ShouldBeTrue)
		})

		Convey("When it is valid", func() {
			c, rec := newChat(clock.NewManual(amsterdam(9, 0)))

			Convey("Then defaults apply and init fires", func() {
				So(c.ID(), ShouldEqual, chatID)
				So(c.Running(), ShouldBeFalse)
				So(c.Timezone(), ShouldEqual, "Europe/Amsterdam")
				So(c.Multiplier(), ShouldEqual, 2.0)
				So(c.NumberOfRandomTimes(), ShouldEqual, 1)
				So(c.PointsPerRandomTime(), ShouldEqual, 10)
				So(c.FirstNotifications(), ShouldBeTrue)
				So(c.HardcoreMode(), ShouldBeFalse)
				So(c.AwaitingResetConfirmation(), ShouldEqual, chat.NoResetConfirmation)
				So(rec.kinds(), ShouldResemble, []plugin.EventKind{plugin.EventInit})
				So(rec.events[0].ChatID, ShouldEqual, chatID)
			})
		})
	})
}

func TestSetLastTime(t *testing.T) {
	Convey("Given a chat with a last time", t, func() {
		c, _ := newChat(clock.NewManual(amsterdam(9, 0)))
		So(c.SetLastTime(5, 30), ShouldBeNil)

		Convey("Invalid hours and minutes are rejected without mutation", func() {
			So(errors.Is(c.SetLastTime(24, 0), chat.ErrInvalidHour), ShouldBeTrue)
			So(errors.Is(c.SetLastTime(-1, 0), chat.ErrInvalidHour), ShouldBeTrue)
			So(errors.Is(c.SetLastTime(3, 60), chat.ErrInvalidMinute), ShouldBeTrue)
			h, m := c.LastTime()
			So(h, ShouldEqual, 5)
			So(m, ShouldEqual, 30)
		})
	})
}

func TestSettings(t *testing.T) {
	Convey("Given a chat", t, func() {
		c, _ := newChat(clock.NewManual(amsterdam(9, 0)))

		Convey("Unknown settings are rejected", func() {
			err := c.SetSetting("colour", "blue")
			So(errors.Is(err, chat.ErrUnknownSetting), ShouldBeTrue)
		})

		Convey("Invalid values leave the setting unchanged", func() {
			for _, raw := range []string{"abc", "0.5", "11"} {
				err := c.SetSetting("multiplier", raw)
				So(errors.Is(err, chat.ErrInvalidSetting), ShouldBeTrue)
			}
			So(errors.Is(c.SetSetting("timezone", "Mars/Olympus"), chat.ErrInvalidSetting), ShouldBeTrue)
			So(errors.Is(c.SetSetting("hardcoremode", "maybe"), chat.ErrInvalidSetting), ShouldBeTrue)
			So(errors.Is(c.SetSetting("numberofrandomtimes", "25"), chat.ErrInvalidSetting), ShouldBeTrue)
			So(errors.Is(c.SetSetting("pointsperrandomtime", "0"), chat.ErrInvalidSetting), ShouldBeTrue)
			So(c.Multiplier(), ShouldEqual, 2.0)
			So(c.Timezone(), ShouldEqual, "Europe/Amsterdam")
		})

		Convey("Valid values are coerced", func() {
			So(c.SetSetting("Multiplier", " 3.5 "), ShouldBeNil)
			So(c.SetSetting("timezone", "America/New_York"), ShouldBeNil)
			So(c.SetSetting("handicaps", "TRUE"), ShouldBeNil)
			So(c.SetSetting("notifications", "false"), ShouldBeNil)
			So(c.Multiplier(), ShouldEqual, 3.5)
			So(c.Location().String(), ShouldEqual, "America/New_York")
			So(c.Handicaps(), ShouldBeTrue)
			So(c.Notifications(), ShouldBeFalse)

			v, ok := c.Setting(chat.SettingMultiplier)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "3.5")
		})

		Convey("Settings are listed in a fixed order", func() {
			values := c.Settings()
			So(values, ShouldHaveLength, len(chat.SettingNames()))
			So(values[0], ShouldResemble, chat.SettingValue{Name: chat.SettingTimezone, Value: "Europe/Amsterdam"})
			So(values[1], ShouldResemble, chat.SettingValue{Name: chat.SettingMultiplier, Value: "2"})
		})
	})
}

func TestDankTimeCatalogue(t *testing.T) {
	Convey("Given a chat", t, func() {
		c, _ := newChat(clock.NewManual(amsterdam(9, 0)))
		c.AddDankTime(mustDankTime(13, 37, 5, "leet"))
		c.AddDankTime(mustDankTime(4, 20, 10, "420"))

		Convey("Dank times are kept in order", func() {
			dts := c.DankTimes()
			So(dts, ShouldHaveLength, 2)
			So(dts[0].String(), ShouldEqual, "04:20")
			So(dts[1].String(), ShouldEqual, "13:37")
		})

		Convey("Adding at the same time replaces", func() {
			c.AddDankTime(mustDankTime(13, 37, 50, "1337"))
			So(c.DankTimes(), ShouldHaveLength, 2)
			dt, ok := c.DankTime(13, 37)
			So(ok, ShouldBeTrue)
			So(dt.Points, ShouldEqual, 50)
			So(dt.Texts, ShouldResemble, []string{"1337"})
		})

		Convey("Removing a missing dank time is a no-op", func() {
			So(c.RemoveDankTime(1, 2), ShouldBeFalse)
			So(c.DankTimes(), ShouldHaveLength, 2)
		})

		Convey("Removing an existing dank time", func() {
			So(c.RemoveDankTime(4, 20), ShouldBeTrue)
			_, ok := c.DankTime(4, 20)
			So(ok, ShouldBeFalse)
			So(c.HasDankTime(4, 20), ShouldBeFalse)
			So(c.HasDankTime(13, 37), ShouldBeTrue)
		})

		Convey("Returned dank times are copies", func() {
			c.DankTimes()[0].Points = 999
			dt, _ := c.DankTime(4, 20)
			So(dt.Points, ShouldEqual, 10)
		})
	})
}

func TestProcessMessage(t *testing.T) {
	ctx := context.Background()

	Convey("Given a chat with bacon at 10:00 worth 10 points", t, func() {
		clk := clock.NewManual(amsterdam(10, 0))
		c, rec := newChat(clk)
		c.AddDankTime(mustDankTime(10, 0, 10, "bacon"))
		now := clk.Now().Unix()

		Convey("When the chat is not running", func() {
			out := c.ProcessMessage(ctx, 1, "alice", "bacon", now)

			Convey("Then no score changes", func() {
				So(out, ShouldResemble, []string{"pre", "post:bacon"})
				_, ok := c.User(1)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the chat is running", func() {
			c.SetRunning(true)

			Convey("Then the first, later and repeated calls score as expected", func() {
				out := c.ProcessMessage(ctx, 1, "alice", "bacon", now)
				So(out, ShouldResemble, []string{"pre", "first:20", "👏 alice was the first to score!", "post:bacon"})
				So(score(c, 1), ShouldEqual, 20)
				a, _ := c.User(1)
				So(a.Called, ShouldBeTrue)
				h, m := c.LastTime()
				So(h, ShouldEqual, 10)
				So(m, ShouldEqual, 0)

				out = c.ProcessMessage(ctx, 2, "bob", "bacon", now)
				So(out, ShouldResemble, []string{"pre", "called:10", "post:bacon"})
				So(score(c, 2), ShouldEqual, 10)

				out = c.ProcessMessage(ctx, 1, "alice", "bacon", now)
				So(out, ShouldResemble, []string{"pre", "repeat:-10", "post:bacon"})
				So(score(c, 1), ShouldEqual, 10)
			})

			Convey("Then matching ignores case and surrounding space", func() {
				c.ProcessMessage(ctx, 1, "alice", "  BaCoN ", now)
				So(score(c, 1), ShouldEqual, 20)
			})

			Convey("Then the first notification can be turned off", func() {
				So(c.SetSetting("firstnotifications", "false"), ShouldBeNil)
				out := c.ProcessMessage(ctx, 1, "alice", "bacon", now)
				So(out, ShouldResemble, []string{"pre", "first:20", "post:bacon"})
			})

			Convey("Then a new slot resets called flags", func() {
				c.AddDankTime(mustDankTime(10, 1, 5, "eggs"))
				c.ProcessMessage(ctx, 1, "alice", "bacon", now)
				clk.Advance(time.Minute)
				c.ProcessMessage(ctx, 2, "bob", "eggs", clk.Now().Unix())
				a, _ := c.User(1)
				So(a.Called, ShouldBeFalse)
				So(score(c, 2), ShouldEqual, 10)
			})

			Convey("Then unrelated text creates no user", func() {
				out := c.ProcessMessage(ctx, 3, "carol", "hello <b>", now)
				So(out, ShouldResemble, []string{"pre", "post:hello &lt;b&gt;"})
				_, ok := c.User(3)
				So(ok, ShouldBeFalse)
			})

			Convey("Then names are refreshed on a match", func() {
				c.ProcessMessage(ctx, 1, "alice", "bacon", now)
				c.ProcessMessage(ctx, 1, "Alice B", "bacon", now)
				a, _ := c.User(1)
				So(a.Name, ShouldEqual, "Alice B")
			})

			Convey("Then stale messages are ignored", func() {
				out := c.ProcessMessage(ctx, 1, "alice", "bacon", now-chat.StaleAfter)
				So(out, ShouldBeEmpty)
				_, ok := c.User(1)
				So(ok, ShouldBeFalse)

				c.ProcessMessage(ctx, 1, "alice", "bacon", now-chat.StaleAfter+1)
				So(score(c, 1), ShouldEqual, 20)
			})

			Convey("Then posting at the wrong time costs the highest matched points", func() {
				c.AddDankTime(mustDankTime(11, 0, 15, "bacon"))
				clk.Set(amsterdam(12, 0))
				out := c.ProcessMessage(ctx, 1, "alice", "bacon", clk.Now().Unix())
				So(out, ShouldResemble, []string{"pre", "wrong_time:-15", "post:bacon"})
				So(score(c, 1), ShouldEqual, -15)
			})

			Convey("Then plugins see the chat and the cleaned text", func() {
				c.ProcessMessage(ctx, 1, "alice", "bacon\t\n", now)
				last := rec.events[len(rec.events)-1]
				So(last.Kind, ShouldEqual, plugin.EventPostMessage)
				So(last.Text, ShouldEqual, "bacon")
				So(last.Chat.ID(), ShouldEqual, chatID)

				scored := rec.events[len(rec.events)-2]
				So(scored.User.ID, ShouldEqual, int64(1))
				So(scored.User.Score, ShouldEqual, 20)
			})
		})
	})
}

func TestHandicap(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running chat with three ranked users", t, func() {
		clk := clock.NewManual(amsterdam(10, 0))
		snap := chat.Snapshot{
			ID:      chatID,
			Running: true,
			Users: []*user.User{
				{ID: 1, Name: "alice", Score: 100},
				{ID: 2, Name: "bob", Score: 50},
				{ID: 3, Name: "carol", Score: 10},
			},
		}
		c, err := chat.FromSnapshot(snap, chat.WithClock(clk))
		So(err, ShouldBeNil)
		c.AddDankTime(mustDankTime(10, 0, 10, "bacon"))
		now := clk.Now().Unix()

		Convey("When handicaps are off", func() {
			c.ProcessMessage(ctx, 3, "carol", "bacon", now)
			So(score(c, 3), ShouldEqual, 30)
		})

		Convey("When handicaps are on", func() {
			So(c.SetSetting("handicaps", "true"), ShouldBeNil)

			Convey("Then the last user gets the bonus as first scorer", func() {
				c.ProcessMessage(ctx, 3, "carol", "bacon", now)
				So(score(c, 3), ShouldEqual, 40)
			})

			Convey("Then the bonus also applies to later callers", func() {
				c.ProcessMessage(ctx, 1, "alice", "bacon", now)
				So(score(c, 1), ShouldEqual, 120)
				c.ProcessMessage(ctx, 3, "carol", "bacon", now)
				So(score(c, 3), ShouldEqual, 25)
			})

			Convey("Then users above the bottom quarter get nothing extra", func() {
				c.ProcessMessage(ctx, 2, "bob", "bacon", now)
				So(score(c, 2), ShouldEqual, 70)
			})
		})
	})
}

func TestResetConfirmation(t *testing.T) {
	ctx := context.Background()

	Convey("Given a chat with scores awaiting confirmation from user 1", t, func() {
		clk := clock.NewManual(amsterdam(10, 0))
		c, rec := newChat(clk)
		c.SetRunning(true)
		c.AddDankTime(mustDankTime(10, 0, 10, "bacon"))
		now := clk.Now().Unix()
		c.ProcessMessage(ctx, 1, "alice", "bacon", now)
		c.ProcessMessage(ctx, 2, "bob", "bacon", now)
		c.AwaitResetConfirmation(1)

		Convey("When another user answers", func() {
			c.ProcessMessage(ctx, 2, "bob", "yes", now)

			Convey("Then nothing is reset and the request stays open", func() {
				So(score(c, 1), ShouldEqual, 20)
				So(c.AwaitingResetConfirmation(), ShouldEqual, int64(1))
			})
		})

		Convey("When the user confirms in any case", func() {
			out := c.ProcessMessage(ctx, 1, "alice", "yEs", now)

			Convey("Then a final leaderboard is shown and scores are zeroed", func() {
				So(out, ShouldHaveLength, 4)
				So(out[0], ShouldEqual, "pre")
				So(out[1], ShouldContainSubstring, "--- FINAL LEADERBOARD ---")
				So(out[1], ShouldContainSubstring, "alice — 20")
				So(out[2], ShouldEqual, "reset")
				So(out[3], ShouldEqual, "post:yEs")
				So(score(c, 1), ShouldEqual, 0)
				So(score(c, 2), ShouldEqual, 0)
				So(c.AwaitingResetConfirmation(), ShouldEqual, chat.NoResetConfirmation)
				So(rec.events[len(rec.events)-2].Kind, ShouldEqual, plugin.EventLeaderboardReset)
			})

			Convey("Then the next leaderboard has no previous to diff against", func() {
				So(c.GenerateLeaderboard(false), ShouldNotContainSubstring, "🆕")
			})
		})

		Convey("When the user declines", func() {
			out := c.ProcessMessage(ctx, 1, "alice", "no", now)

			Convey("Then nothing is reset but the request is closed", func() {
				So(out, ShouldResemble, []string{"pre", "post:no"})
				So(score(c, 1), ShouldEqual, 20)
				So(c.AwaitingResetConfirmation(), ShouldEqual, chat.NoResetConfirmation)
			})

			Convey("Then the next message scores normally", func() {
				c.ProcessMessage(ctx, 1, "alice", "bacon", now)
				So(score(c, 1), ShouldEqual, 10)
			})
		})
	})
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running chat with scores", t, func() {
		clk := clock.NewManual(amsterdam(10, 0))
		c, _ := newChat(clk)
		c.SetRunning(true)
		c.AddDankTime(mustDankTime(10, 0, 10, "bacon"))
		now := clk.Now().Unix()
		c.ProcessMessage(ctx, 1, "alice", "bacon", now)
		So(c.LeaderboardChanged(), ShouldBeTrue)

		Convey("When a leaderboard is generated", func() {
			first := c.GenerateLeaderboard(false)

			Convey("Then the change counters are cleared", func() {
				So(first, ShouldStartWith, "<b>--- LEADERBOARD ---</b>")
				So(c.LeaderboardChanged(), ShouldBeFalse)
				u, _ := c.User(1)
				So(u.LastScoreChange, ShouldEqual, 0)
			})

			Convey("Then the next one diffs against it", func() {
				c.ProcessMessage(ctx, 2, "bob", "bacon", now)
				second := c.GenerateLeaderboard(false)
				lines := strings.Split(second, "\n")
				So(lines[1], ShouldEqual, "<b>1.</b> alice — 20")
				So(lines[2], ShouldEqual, "<b>2.</b> bob — 10 (+10) 🆕")
			})
		})

		Convey("Leaderboard has no side effects", func() {
			So(c.Leaderboard().Len(), ShouldEqual, 1)
			So(c.LeaderboardChanged(), ShouldBeTrue)
		})
	})
}

func TestHardcoreModeCheck(t *testing.T) {
	ctx := context.Background()
	now := amsterdam(0, 0).Unix()

	snap := chat.Snapshot{
		ID: chatID,
		Users: []*user.User{
			{ID: 1, Name: "rich", Score: 200, LastScoreTimestamp: now - chat.HardcoreInactivity},
			{ID: 2, Name: "poor", Score: 50, LastScoreTimestamp: now - 2*chat.HardcoreInactivity},
			{ID: 3, Name: "broke", Score: -30, LastScoreTimestamp: 0},
			{ID: 4, Name: "active", Score: 100, LastScoreTimestamp: now - 60},
		},
	}

	Convey("Given inactive users", t, func() {
		rec := &recorder{}
		c, err := chat.FromSnapshot(snap, chat.WithTrigger(rec))
		So(err, ShouldBeNil)

		Convey("When hardcore mode is off", func() {
			out := c.HardcoreModeCheck(ctx, now)

			Convey("Then no score changes", func() {
				So(out, ShouldBeEmpty)
				So(score(c, 1), ShouldEqual, 200)
				So(score(c, 2), ShouldEqual, 50)
				So(score(c, 3), ShouldEqual, -30)
			})
		})

		Convey("When hardcore mode is on", func() {
			So(c.SetSetting("hardcoremode", "true"), ShouldBeNil)
			out := c.HardcoreModeCheck(ctx, now)

			Convey("Then inactive users lose at least ten points", func() {
				So(score(c, 1), ShouldEqual, 180)
				So(score(c, 2), ShouldEqual, 40)
				So(score(c, 3), ShouldEqual, -40)
				So(score(c, 4), ShouldEqual, 100)
				So(out, ShouldResemble, []string{"hardcore:-20", "hardcore:-10", "hardcore:-10"})
			})

			Convey("Then the punishment clock restarts", func() {
				u, _ := c.User(2)
				So(u.LastScoreTimestamp, ShouldEqual, now)
				So(c.HardcoreModeCheck(ctx, now+60), ShouldBeEmpty)
			})
		})
	})
}

func TestGenerateRandomDankTimes(t *testing.T) {
	ctx := context.Background()

	Convey("Given a chat with a seeded random source", t, func() {
		clk := clock.NewManual(amsterdam(0, 0))
		c, _ := newChat(clk, chat.WithRand(rand.New(rand.NewSource(42))))
		c.AddDankTime(mustDankTime(13, 37, 5, "leet"))

		Convey("When many random times are requested", func() {
			So(c.SetSetting("numberofrandomtimes", "24"), ShouldBeNil)
			So(c.SetSetting("pointsperrandomtime", "7"), ShouldBeNil)
			got := c.GenerateRandomDankTimes()

			Convey("Then every slot is in range and unique", func() {
				So(len(got), ShouldBeBetweenOrEqual, 1, 24)
				seen := map[string]bool{}
				for _, dt := range got {
					So(dt.Hour, ShouldBeBetweenOrEqual, 0, 22)
					So(dt.Minute, ShouldBeBetweenOrEqual, 0, 58)
					So(dt.Points, ShouldEqual, 7)
					So(dt.Texts, ShouldResemble, []string{fmt.Sprintf("%02d%02d", dt.Hour, dt.Minute)})
					So(seen[dt.String()], ShouldBeFalse)
					So(dt.Same(13, 37), ShouldBeFalse)
					seen[dt.String()] = true
				}
				So(c.RandomDankTimes(), ShouldResemble, got)
			})
		})

		Convey("When regenerated with zero random times", func() {
			c.GenerateRandomDankTimes()
			So(c.SetSetting("numberofrandomtimes", "0"), ShouldBeNil)
			So(c.GenerateRandomDankTimes(), ShouldBeEmpty)
			So(c.RandomDankTimes(), ShouldBeEmpty)
		})

		Convey("When a random time is called", func() {
			got := c.GenerateRandomDankTimes()
			So(got, ShouldHaveLength, 1)
			dt := got[0]
			So(c.HasDankTime(dt.Hour, dt.Minute), ShouldBeTrue)

			c.SetRunning(true)
			So(c.SetLastTime(23, 59), ShouldBeNil)
			clk.Set(amsterdam(dt.Hour, dt.Minute))
			c.ProcessMessage(ctx, 1, "alice", dt.Texts[0], clk.Now().Unix())

			Convey("Then it scores like a normal dank time", func() {
				So(score(c, 1), ShouldEqual, 20)
			})
		})
	})
}

func TestGenerateRandomDankTimes_Collisions(t *testing.T) {
	Convey("Given a random source that repeats its draw", t, func() {
		c, _ := newChat(clock.NewManual(amsterdam(9, 0)), chat.WithRand(rand.New(zeroSource{})))
		So(c.SetSetting("numberofrandomtimes", "24"), ShouldBeNil)

		Convey("When random times are generated", func() {
			got := c.GenerateRandomDankTimes()

			Convey("Then repeated draws are dropped, not retried", func() {
				So(len(got), ShouldBeLessThan, c.NumberOfRandomTimes())
				So(got, ShouldHaveLength, 1)
				So(got[0].Same(0, 0), ShouldBeTrue)
			})
		})

		Convey("When the drawn slot is already a normal dank time", func() {
			c.AddDankTime(mustDankTime(0, 0, 5, "midnight"))
			got := c.GenerateRandomDankTimes()

			Convey("Then no random time is added", func() {
				So(got, ShouldBeEmpty)
				So(c.HasDankTime(0, 0), ShouldBeTrue)
			})
		})
	})
}

func TestFromSnapshot_Init(t *testing.T) {
	Convey("Given a persisted chat with users and dank times", t, func() {
		snap := chat.Snapshot{
			ID:         chatID,
			LastHour:   13,
			LastMinute: 37,
			Running:    true,
			DankTimes:  []*danktime.DankTime{mustDankTime(13, 37, 5, "leet")},
			Users:      []*user.User{{ID: 1, Name: "alice", Score: 10}},
		}

		var initUsers []*user.User
		initRunning := false
		inits := 0
		trigger := plugin.Func(func(_ context.Context, ev plugin.Event) []string {
			if ev.Kind == plugin.EventInit {
				inits++
				initUsers = ev.Chat.Users()
				initRunning = ev.Chat.Running()
			}
			return nil
		})

		Convey("When it is restored", func() {
			c, err := chat.FromSnapshot(snap, chat.WithTrigger(trigger))
			So(err, ShouldBeNil)

			Convey("Then init fires once and sees the restored state", func() {
				So(inits, ShouldEqual, 1)
				So(initRunning, ShouldBeTrue)
				So(initUsers, ShouldHaveLength, 1)
				So(initUsers[0].Name, ShouldEqual, "alice")
				hour, minute := c.LastTime()
				So(hour, ShouldEqual, 13)
				So(minute, ShouldEqual, 37)
			})
		})
	})
}

func TestRemoveUsers(t *testing.T) {
	Convey("Given users with and without points", t, func() {
		c, err := chat.FromSnapshot(chat.Snapshot{
			ID: chatID,
			Users: []*user.User{
				{ID: 1, Name: "a", Score: 0},
				{ID: 2, Name: "b", Score: 5},
				{ID: 3, Name: "c", Score: 0},
				{ID: 4, Name: "d", Score: -5},
			},
		})
		So(err, ShouldBeNil)

		Convey("RemoveUsersWithZeroScore drops exactly the zero scores", func() {
			So(c.RemoveUsersWithZeroScore(), ShouldEqual, 2)
			users := c.Users()
			So(users, ShouldHaveLength, 2)
			So(users[0].ID, ShouldEqual, int64(2))
			So(users[1].ID, ShouldEqual, int64(4))
		})

		Convey("RemoveUser returns the removed user", func() {
			u, ok := c.RemoveUser(2)
			So(ok, ShouldBeTrue)
			So(u.Name, ShouldEqual, "b")
			_, ok = c.RemoveUser(2)
			So(ok, ShouldBeFalse)
		})
	})
}
