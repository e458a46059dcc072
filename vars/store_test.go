package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveType(t *testing.T) {
	cases := []struct {
		value interface{}
		want  string
	}{
		{nil, "null"},
		{"hello", "string"},
		{true, "boolean"},
		{42, "number"},
		{int64(42), "number"},
		{3.14, "number"},
		{[]interface{}{1, 2}, "array"},
		{[]string{"a"}, "array"},
		{map[string]interface{}{"k": 1}, "object"},
		{struct{}{}, "object"},
		{func() {}, "function"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveType(tc.value), "value %#v", tc.value)
	}
}

func TestSetRecomputesTypeOnEveryWrite(t *testing.T) {
	s := NewStore()

	s.Set(GlobalScope, "x", 1)
	assert.Equal(t, "number", s.Type(GlobalScope, "x"))

	s.Set(GlobalScope, "x", "now a string")
	assert.Equal(t, "string", s.Type(GlobalScope, "x"))

	s.Set(GlobalScope, "x", nil)
	assert.Equal(t, "null", s.Type(GlobalScope, "x"))
}

func TestGetUnsetVariable(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("app-1", "missing")
	assert.False(t, ok)
	assert.Nil(t, s.Value("app-1", "missing"))
	assert.Equal(t, "", s.Type("app-1", "missing"))

	// Reading never creates state.
	assert.Empty(t, s.Names("app-1"))
}

func TestScopesAreIsolated(t *testing.T) {
	s := NewStore()

	s.Set("app-1", "title", "first")
	s.Set("app-2", "title", "second")

	assert.Equal(t, "first", s.Value("app-1", "title"))
	assert.Equal(t, "second", s.Value("app-2", "title"))
	assert.Nil(t, s.Value(GlobalScope, "title"))
}

func TestDefaultsSeeded(t *testing.T) {
	s := NewStore()

	assert.Equal(t, false, s.Value(GlobalScope, "isAuthenticated"))
	assert.Equal(t, "light", s.Value(GlobalScope, "theme"))
}

func TestClearReseedsDefaults(t *testing.T) {
	s := NewStore()
	s.Set(GlobalScope, "theme", "dark")
	s.Set("app-1", "count", 3)

	s.Clear()

	assert.Equal(t, "light", s.Value(GlobalScope, "theme"))
	assert.Nil(t, s.Value("app-1", "count"))
}

func TestSubscribeReceivesWrites(t *testing.T) {
	s := NewStore()

	var gotScope, gotName string
	var gotEntry Entry
	calls := 0
	s.Subscribe("app-1", "count", func(scope, name string, entry Entry) {
		gotScope, gotName, gotEntry = scope, name, entry
		calls++
	})

	s.Set("app-1", "count", 7)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "app-1", gotScope)
	assert.Equal(t, "count", gotName)
	assert.Equal(t, "number", gotEntry.Type)
	assert.Equal(t, 7, gotEntry.Value)
}

func TestSubscriptionSurvivesReplace(t *testing.T) {
	s := NewStore()
	s.Set(GlobalScope, "v", "a")

	calls := 0
	s.Subscribe(GlobalScope, "v", func(string, string, Entry) { calls++ })

	s.Set(GlobalScope, "v", "b")
	s.Set(GlobalScope, "v", "c")

	assert.Equal(t, 2, calls)
}

func TestSubscribeCancel(t *testing.T) {
	s := NewStore()

	calls := 0
	cancel := s.Subscribe(GlobalScope, "v", func(string, string, Entry) { calls++ })
	s.Set(GlobalScope, "v", 1)
	cancel()
	s.Set(GlobalScope, "v", 2)

	assert.Equal(t, 1, calls)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore()
	s.Set(GlobalScope, "theme", "dark")
	s.Set("app-1", "items", []interface{}{"a", "b"})

	snapshot := s.Snapshot()

	restored := NewStore()
	restored.Restore(snapshot)

	assert.Equal(t, "dark", restored.Value(GlobalScope, "theme"))
	assert.Equal(t, []interface{}{"a", "b"}, restored.Value("app-1", "items"))
	assert.Equal(t, "array", restored.Type("app-1", "items"))
}

func TestRestoreRederivesTypes(t *testing.T) {
	s := NewStore()
	s.Restore(map[string]map[string]Entry{
		GlobalScope: {
			// Deliberately wrong tag; Restore must not trust it.
			"n": {Type: "string", Value: 5},
		},
	})

	assert.Equal(t, "number", s.Type(GlobalScope, "n"))
}
