package fixtures

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/shared/mobile-test-data/NGC/API/tax-credits/summary.json":  `{"name": "NAME", "amount": 12.5}`,
		"/shared/mobile-test-data/NGC/WEB/help/faq.html":             "<h1>FAQ</h1>",
		"/local/mobile-test-data/NGC/API/tax-credits/summary.json":   `{"name": "local"}`,
		"/local/mobile-test-data/NGC/API/messages/inbox.atom":        "<feed/>",
		"/shared/mobile-test-data/NGC/API/tax-credits/greeting.json": `"Hello NAME, you owe AMOUNT"`,
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return NewStore(fs, "/local", "/shared")
}

func TestStore_LoadSearchesRootsInOrder(t *testing.T) {
	store := newTestStore(t)

	content, err := store.Load("summary", "tax-credits")
	require.NoError(t, err)
	assert.Equal(t, `{"name": "local"}`, content)

	content, err = store.Load("greeting", "tax-credits")
	require.NoError(t, err)
	assert.Contains(t, content, "Hello NAME")
}

func TestStore_DirectoryAndType(t *testing.T) {
	store := newTestStore(t)

	content, err := store.Load("faq", "help", Directory(Web), Type(HTML))
	require.NoError(t, err)
	assert.Equal(t, "<h1>FAQ</h1>", content)

	content, err = store.Load("inbox", "messages", Type(Atom))
	require.NoError(t, err)
	assert.Equal(t, "<feed/>", content)

	path, err := store.Path("faq", "help", Directory(Web), Type(HTML))
	require.NoError(t, err)
	assert.Equal(t, "/shared/mobile-test-data/NGC/WEB/help/faq.html", path)
}

func TestStore_Substitutions(t *testing.T) {
	store := newTestStore(t)

	content, err := store.Load("greeting", "tax-credits", Substitutions(map[string]string{
		"NAME":   "Jo",
		"AMOUNT": "£10",
	}))
	require.NoError(t, err)
	assert.Equal(t, `"Hello Jo, you owe £10"`, content)
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("missing", "tax-credits")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Name)
	assert.Equal(t, API, notFound.Directory)
	assert.Equal(t, JSON, notFound.Type)
	assert.Contains(t, err.Error(), "mobile-test-data/NGC/API/tax-credits")

	// The file exists, but not as HTML.
	_, err = store.Load("summary", "tax-credits", Type(HTML))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadJSON(t *testing.T) {
	store := newTestStore(t)

	var summary struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}
	require.NoError(t, NewStore(store.fs, "/shared").LoadJSON("summary", "tax-credits", &summary,
		Substitutions(map[string]string{"NAME": "Sam"})))
	assert.Equal(t, "Sam", summary.Name)
	assert.Equal(t, 12.5, summary.Amount)

	var broken map[string]any
	err := store.LoadJSON("inbox", "messages", &broken)
	assert.ErrorIs(t, err, ErrNotFound, "LoadJSON always looks for .json files")
}

type fatalRecorder struct {
	messages []string
}

func (f *fatalRecorder) Helper() {}
func (f *fatalRecorder) Fatalf(format string, args ...any) {
	f.messages = append(f.messages, fmt.Sprintf(format, args...))
}

func TestStore_MustLoad(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "<feed/>", store.MustLoad(t, "inbox", "messages", Type(Atom)))

	recorder := &fatalRecorder{}
	store.MustLoad(recorder, "missing", "messages")
	require.Len(t, recorder.messages, 1)
	assert.Contains(t, recorder.messages[0], "could not locate missing.json")
}

func TestStore_DefaultRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "mobile-test-data/NGC/API/a/b.json", []byte("{}"), 0o644))

	content, err := NewStore(fs).Load("b", "a")
	require.NoError(t, err)
	assert.Equal(t, "{}", content)
}
