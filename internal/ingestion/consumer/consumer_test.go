package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

type fakeWriter struct {
	docs      []string
	commits   int
	addErr    error
	commitErr error
}

func (f *fakeWriter) AddDocument(text string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.docs = append(f.docs, text)
	return nil
}

func (f *fakeWriter) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	return nil
}

func TestHandleMessageBuffersDocument(t *testing.T) {
	w := &fakeWriter{}
	f := New(w)
	err := f.HandleMessage()(context.Background(), []byte("k1"),
		[]byte(`{"key":"k1","document":{"title":"red shoes"},"ingested_at":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"title":"red shoes"}`}, w.docs)

	added, rejected := f.Stats()
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, rejected)
}

func TestHandleMessageSkipsBadInput(t *testing.T) {
	w := &fakeWriter{}
	f := New(w)
	h := f.HandleMessage()

	require.NoError(t, h(context.Background(), nil, []byte(`not json`)))
	require.NoError(t, h(context.Background(), nil, []byte(`{"key":"x"}`)))
	assert.Empty(t, w.docs)

	_, rejected := f.Stats()
	assert.Equal(t, 2, rejected)
}

func TestHandleMessageSkipsInvalidDocument(t *testing.T) {
	w := &fakeWriter{addErr: pkgerrors.New(pkgerrors.ErrDocumentValidation, "add_document", "bad")}
	f := New(w)
	err := f.HandleMessage()(context.Background(), nil, []byte(`{"document":{"nope":"x"}}`))
	require.NoError(t, err)

	_, rejected := f.Stats()
	assert.Equal(t, 1, rejected)
}

func TestHandleMessageReturnsWriterFailure(t *testing.T) {
	w := &fakeWriter{addErr: pkgerrors.Precondition("add_document", pkgerrors.ErrNoWriter)}
	f := New(w)
	err := f.HandleMessage()(context.Background(), []byte("k"), []byte(`{"document":{"title":"x"}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrPrecondition)
}

func TestCheckpointCommits(t *testing.T) {
	w := &fakeWriter{}
	f := New(w)
	require.NoError(t, f.Checkpoint(context.Background()))
	assert.Equal(t, 1, w.commits)

	w.commitErr = errors.New("disk full")
	err := f.Checkpoint(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, w.commits)
}
