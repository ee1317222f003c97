package state

import (
	"testing"
	"time"

	"github.com/matheus3301/chatline/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, at time.Duration) model.Message {
	return model.Message{ID: id, SenderID: "u1", ReceiverID: "me", Text: id, CreatedAt: t0.Add(at)}
}

func ids(items []model.TimelineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTimelineOrdersByCreation(t *testing.T) {
	tl := NewTimeline([]model.Message{msg("b", 2*time.Second), msg("a", time.Second), msg("c", 3*time.Second)})
	if got := ids(tl.Items()); !equal(got, []string{"a", "b", "c"}) {
		t.Errorf("order = %v", got)
	}
}

func TestTimelineUpsertIsIdempotent(t *testing.T) {
	tl := &Timeline{}
	m := msg("m1", 0)
	if !tl.Upsert(m) {
		t.Fatal("first upsert should change")
	}
	tl.Upsert(m)
	if tl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tl.Len())
	}
}

func TestTimelineLastWriterWins(t *testing.T) {
	tl := &Timeline{}
	orig := msg("m1", 0)
	newer := orig
	newer.Text = "edited"
	newer.Edited = true
	newer.UpdatedAt = t0.Add(time.Minute)
	older := orig
	older.Text = "stale"
	older.UpdatedAt = t0.Add(30 * time.Second)

	tl.Upsert(orig)
	tl.Upsert(newer)
	if tl.Upsert(older) {
		t.Error("older copy should be ignored")
	}
	got, _ := tl.Message("m1")
	if got.Text != "edited" || !got.Edited {
		t.Errorf("message = %+v", got)
	}
}

func TestTimelineArrivalOrderIndependent(t *testing.T) {
	orig := msg("m1", 0)
	edit := orig
	edit.Text = "v2"
	edit.UpdatedAt = t0.Add(time.Minute)

	a, b := &Timeline{}, &Timeline{}
	a.Upsert(orig)
	a.Upsert(edit)
	b.Upsert(edit)
	b.Upsert(orig)

	ma, _ := a.Message("m1")
	mb, _ := b.Message("m1")
	if ma.Text != mb.Text || ma.Text != "v2" {
		t.Errorf("a=%q b=%q", ma.Text, mb.Text)
	}
}

func TestTimelineTombstoneIsTerminal(t *testing.T) {
	tl := &Timeline{}
	orig := msg("m1", 0)
	tl.Upsert(orig)

	del := orig
	del.DeletedForEveryone = true
	del.UpdatedAt = t0.Add(time.Minute)
	tl.Upsert(del)

	late := orig
	late.Text = "edit that lost the race"
	late.UpdatedAt = t0.Add(2 * time.Minute)
	if tl.Upsert(late) {
		t.Error("edit revived a deleted message")
	}
	got, _ := tl.Message("m1")
	if got.Lifecycle() != model.DeletedForEveryone || got.Text != "" {
		t.Errorf("message = %+v", got)
	}
	if tl.Len() != 1 {
		t.Errorf("tombstone should keep its slot, Len() = %d", tl.Len())
	}
}

func TestTimelineHiddenStaysHidden(t *testing.T) {
	tl := &Timeline{}
	m := msg("m1", 0)
	tl.Upsert(m)
	tl.Hide("m1")
	m.UpdatedAt = t0.Add(time.Minute)
	tl.Upsert(m)
	got, _ := tl.Message("m1")
	if !got.HiddenForMe {
		t.Error("hidden flag lost on merge")
	}
}

func TestTimelineConfirm(t *testing.T) {
	pending := model.Message{ID: "temp-1", ClientID: "temp-1", Text: "hi", Pending: true, CreatedAt: t0}
	server := model.Message{ID: "m9", ClientID: "temp-1", Text: "hi", CreatedAt: t0}

	t.Run("response first", func(t *testing.T) {
		tl := &Timeline{}
		tl.Append(pending)
		tl.Confirm("temp-1", server)
		if got := ids(tl.Items()); !equal(got, []string{"m9"}) {
			t.Errorf("ids = %v", got)
		}
		m, _ := tl.Message("m9")
		if m.Pending {
			t.Error("confirmed message still pending")
		}
	})

	t.Run("socket first", func(t *testing.T) {
		tl := &Timeline{}
		tl.Append(pending)
		tl.Upsert(server)
		tl.Confirm("temp-1", server)
		if got := ids(tl.Items()); !equal(got, []string{"m9"}) {
			t.Errorf("ids = %v", got)
		}
	})

	t.Run("socket echo without client id", func(t *testing.T) {
		echo := server
		echo.ClientID = ""
		tl := &Timeline{}
		tl.Append(pending)
		tl.Upsert(echo)
		tl.Confirm("temp-1", server)
		if got := ids(tl.Items()); !equal(got, []string{"m9"}) {
			t.Errorf("ids = %v", got)
		}
	})
}

func TestTimelineEvents(t *testing.T) {
	tl := NewTimeline([]model.Message{msg("m1", 0), msg("m2", 2*time.Second)})
	ev := model.GroupEvent{ID: "e1", GroupID: "g1", Type: model.MemberJoined, CreatedAt: t0.Add(time.Second)}
	if !tl.UpsertEvent(ev) {
		t.Fatal("first event insert should change")
	}
	if tl.UpsertEvent(ev) {
		t.Error("duplicate event inserted")
	}
	if got := ids(tl.Items()); !equal(got, []string{"m1", "e1", "m2"}) {
		t.Errorf("ids = %v", got)
	}
}

func TestTimelineSnapshotRestore(t *testing.T) {
	tl := NewTimeline([]model.Message{msg("m1", 0)})
	snap := tl.Snapshot()
	tl.Update("m1", func(m *model.Message) { m.Starred = true })
	tl.Append(msg("m2", time.Second))

	tl.Restore(snap)
	got, _ := tl.Message("m1")
	if tl.Len() != 1 || got.Starred {
		t.Errorf("restore failed: len=%d starred=%v", tl.Len(), got.Starred)
	}
}

func TestTimelineCopiesDoNotAlias(t *testing.T) {
	tl := NewTimeline([]model.Message{{ID: "m1", ReplyTo: &model.ReplyRef{ID: "m0", Text: "orig"}}})
	items := tl.Items()
	items[0].Message.ReplyTo.Text = "mutated"
	got, _ := tl.Message("m1")
	if got.ReplyTo.Text != "orig" {
		t.Error("Items() leaked internal pointer")
	}
}
