package observability

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanic(t *testing.T) {
	logger, hook := test.NewNullLogger()

	func() {
		defer RecoverPanic(logger, "mod entry")
		panic("boom")
	}()

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "boom", hook.LastEntry().Data["panic"])
	assert.Equal(t, "mod entry", hook.LastEntry().Data["context"])
	assert.NotEmpty(t, hook.LastEntry().Data["stack"])
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	logger, hook := test.NewNullLogger()

	func() {
		defer RecoverPanic(logger, "quiet")
	}()

	assert.Empty(t, hook.Entries)
}

func TestRecoverPanicWithCallback(t *testing.T) {
	logger, _ := test.NewNullLogger()
	called := false

	func() {
		defer RecoverPanicWithCallback(logger, "dispose", func() { called = true })
		panic(errors.New("bad"))
	}()
	assert.True(t, called)

	called = false
	func() {
		defer RecoverPanicWithCallback(logger, "dispose", func() { called = true })
	}()
	assert.False(t, called)
}

func TestMustRecover(t *testing.T) {
	assert.NoError(t, MustRecover(nil))

	sentinel := errors.New("inner")
	run := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = MustRecover(r)
			}
		}()
		panic(sentinel)
	}

	err := run()
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "panic: inner", err.Error())

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Stack)
}
