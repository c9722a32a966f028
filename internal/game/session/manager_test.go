package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOutbox_Push(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Push([]byte("hello")))

	data := <-o.Frames()
	assert.Equal(t, []byte("hello"), data)
}

func TestOutbox_PushClosed(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Close())
	assert.True(t, o.IsClosed())
	assert.ErrorIs(t, o.Push([]byte("fail")), ErrOutboxClosed)
}

func TestOutbox_PushFull(t *testing.T) {
	o := NewOutbox("test", 1)
	require.NoError(t, o.Push([]byte("first")))
	assert.False(t, o.Overflowed())
	err := o.Push([]byte("overflow"))
	assert.ErrorIs(t, err, ErrOutboxFull)
	assert.True(t, o.IsClosed(), "a full outbox closes itself")
	assert.True(t, o.Overflowed())
	assert.ErrorIs(t, o.Push([]byte("late")), ErrOutboxClosed)

	// Frames queued before the overflow are still delivered, then the channel ends.
	var got []string
	for f := range o.Frames() {
		got = append(got, string(f))
	}
	assert.Equal(t, []string{"first"}, got)
}

func TestOutbox_CloseIsNotOverflow(t *testing.T) {
	o := NewOutbox("test", 1)
	require.NoError(t, o.Close())
	assert.False(t, o.Overflowed())
}

func TestOutbox_CloseIdempotent(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.True(t, o.IsClosed())
}

func TestOutbox_DrainsBufferedAfterClose(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Push([]byte("a")))
	require.NoError(t, o.Push([]byte("b")))
	require.NoError(t, o.Close())

	var got []string
	for f := range o.Frames() {
		got = append(got, string(f))
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestOutbox_DefaultSize(t *testing.T) {
	o := NewOutbox("test", 0)
	assert.Equal(t, DefaultOutboxSize, cap(o.frames))
	assert.Equal(t, "test", o.ID())
}

func TestValidateName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Alice", "Alice", true},
		{"  Bob  ", "Bob", true},
		{"a.b-c_d e", "a.b-c_d e", true},
		{strings.Repeat("x", 20), strings.Repeat("x", 20), true},
		{strings.Repeat("x", 21), "", false},
		{"", "", false},
		{"   ", "", false},
		{"bad!", "", false},
		{"tab\tname", "", false},
		{"émile", "", false},
		{"<script>", "", false},
	}
	for _, tc := range cases {
		got, err := ValidateName(tc.raw)
		if tc.ok {
			require.NoError(t, err, "raw=%q", tc.raw)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrInvalidName, "raw=%q", tc.raw)
		}
	}
}

func newTestPlayer(id, name string) *Player {
	return NewPlayer(id, name, "#4ade80", 100, 100, time.Now(), NewOutbox(id, 4))
}

func TestTable_Add(t *testing.T) {
	tbl := NewTable(8)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "Alice")))
	assert.Equal(t, 1, tbl.Count())

	p, ok := tbl.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, 100.0, p.X)
}

func TestTable_AddDuplicateID(t *testing.T) {
	tbl := NewTable(8)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "Alice")))
	assert.ErrorIs(t, tbl.Add(newTestPlayer("u1", "Alice2")), ErrDuplicateID)
	assert.Equal(t, 1, tbl.Count())
}

func TestTable_AddNameTakenIsCaseSensitive(t *testing.T) {
	tbl := NewTable(8)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "Alice")))
	assert.ErrorIs(t, tbl.Add(newTestPlayer("u2", "Alice")), ErrNameTaken)
	require.NoError(t, tbl.Add(newTestPlayer("u3", "alice")))
	assert.True(t, tbl.NameTaken("alice"))
	assert.Equal(t, 2, tbl.Count())
}

func TestTable_AddFull(t *testing.T) {
	tbl := NewTable(2)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "A")))
	require.NoError(t, tbl.Add(newTestPlayer("u2", "B")))
	assert.True(t, tbl.Full())
	assert.ErrorIs(t, tbl.Add(newTestPlayer("u3", "C")), ErrFull)
	assert.Equal(t, 2, tbl.Count())
}

func TestTable_NameCheckedBeforeCapacity(t *testing.T) {
	tbl := NewTable(1)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "A")))
	assert.ErrorIs(t, tbl.Add(newTestPlayer("u2", "A")), ErrNameTaken)
}

func TestTable_Remove(t *testing.T) {
	tbl := NewTable(8)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "Alice")))

	p, ok := tbl.Remove("u1")
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, 0, tbl.Count())
	assert.False(t, tbl.NameTaken("Alice"))

	_, ok = tbl.Remove("u1")
	assert.False(t, ok, "second remove is a no-op")
}

func TestTable_Move(t *testing.T) {
	tbl := NewTable(8)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "Alice")))
	assert.True(t, tbl.Move("u1", 150, 120))
	p, _ := tbl.Get("u1")
	assert.Equal(t, 150.0, p.X)
	assert.Equal(t, 120.0, p.Y)
	assert.False(t, tbl.Move("ghost", 1, 1))
}

func TestTable_SnapshotOrderAndIsolation(t *testing.T) {
	tbl := NewTable(8)
	require.NoError(t, tbl.Add(newTestPlayer("u1", "A")))
	require.NoError(t, tbl.Add(newTestPlayer("u2", "B")))
	require.NoError(t, tbl.Add(newTestPlayer("u3", "C")))
	_, _ = tbl.Remove("u2")
	require.NoError(t, tbl.Add(newTestPlayer("u4", "D")))

	snap := tbl.Snapshot()
	ids := make([]string, len(snap))
	for i, p := range snap {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"u1", "u3", "u4"}, ids)

	_, _ = tbl.Remove("u1")
	tbl.Move("u3", 5, 5)
	assert.Len(t, snap, 3)
	assert.Equal(t, 100.0, snap[1].X)
}

func TestTable_ConcurrentAdd(t *testing.T) {
	tbl := NewTable(8)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tbl.Add(newTestPlayer(fmt.Sprintf("u%d", i), fmt.Sprintf("p%d", i)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, tbl.Count())
}

func TestPropertyValidateName_AllowList(t *testing.T) {
	allowed := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-.")
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, MaxNameLength).Draw(t, "len")
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = rapid.SampledFrom(allowed).Draw(t, "r")
		}
		name := string(runes)
		got, err := ValidateName(name)
		if err != nil {
			t.Fatalf("ValidateName(%q) = %v", name, err)
		}
		if got != name {
			t.Fatalf("ValidateName(%q) = %q", name, got)
		}
	})
}

func TestPropertyValidateName_RejectsOutsideAllowList(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.StringMatching(`[A-Za-z0-9]{0,5}`).Draw(t, "prefix")
		bad := rapid.SampledFrom([]rune("!@#$%^&*()+=<>?/\\|\"'{}[]~`,;:é")).Draw(t, "bad")
		name := prefix + string(bad)
		if _, err := ValidateName(name); err == nil {
			t.Fatalf("ValidateName(%q) accepted", name)
		}
	})
}

func TestPropertyTable_NeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 10).Draw(t, "capacity")
		tbl := NewTable(capacity)
		var live []string
		next := 0
		for i := rapid.IntRange(1, 100).Draw(t, "ops"); i > 0; i-- {
			if len(live) > 0 && rapid.Bool().Draw(t, "remove") {
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "idx")
				if _, ok := tbl.Remove(live[idx]); !ok {
					t.Fatalf("remove of live id %s failed", live[idx])
				}
				live = append(live[:idx], live[idx+1:]...)
			} else {
				id := fmt.Sprintf("u%d", next)
				name := rapid.SampledFrom([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}).Draw(t, "name")
				next++
				if err := tbl.Add(newTestPlayer(id, name)); err == nil {
					live = append(live, id)
				}
			}
			if tbl.Count() > capacity {
				t.Fatalf("count %d exceeds capacity %d", tbl.Count(), capacity)
			}
			if tbl.Count() != len(live) {
				t.Fatalf("count %d != tracked %d", tbl.Count(), len(live))
			}
		}
		seen := map[string]bool{}
		for _, p := range tbl.Snapshot() {
			if seen[p.Name] {
				t.Fatalf("duplicate name %q", p.Name)
			}
			seen[p.Name] = true
		}
	})
}
