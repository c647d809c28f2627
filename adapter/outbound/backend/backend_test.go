package backend

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/dirmon/domain/model"
)

func TestNew(t *testing.T) {
	b, err := New(FSNotify, Options{})
	require.NoError(t, err)
	assert.Equal(t, "fsnotify", b.Name())

	_, err = New("kqueue", Options{})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestNew_Auto(t *testing.T) {
	want := "fsnotify"
	if runtime.GOOS == "linux" {
		want = "inotify"
	}

	for _, name := range []string{"", Auto} {
		b, err := New(name, Options{})
		require.NoError(t, err)
		assert.Equal(t, want, b.Name())
	}
	assert.Equal(t, want, Default().Name())
}

func TestNew_Inotify(t *testing.T) {
	b, err := New(Inotify, Options{ReadBufferSize: 1 << 16})
	if runtime.GOOS != "linux" {
		assert.ErrorIs(t, err, model.ErrInvalidArgument)
		return
	}
	require.NoError(t, err)
	assert.Equal(t, "inotify", b.Name())
}
