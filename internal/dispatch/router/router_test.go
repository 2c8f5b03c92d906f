package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-dispatch/internal/shared/util"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []interface{}
	fail   bool
	closed bool
}

func (c *fakeConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestSendToAllDevices(t *testing.T) {
	r := New(util.New())
	phone, tablet := &fakeConn{}, &fakeConn{}
	r.Join("rider-1", RoleRider, phone)
	r.Join("rider-1", RoleRider, tablet)

	require.True(t, r.SendTo("rider-1", "hello"))
	assert.Equal(t, 1, phone.count())
	assert.Equal(t, 1, tablet.count())
}

func TestSendToUnknownIdentity(t *testing.T) {
	r := New(util.New())
	assert.False(t, r.SendTo("nobody", "hello"))
}

func TestDeadConnectionDroppedOthersSurvive(t *testing.T) {
	r := New(util.New())
	dead, live := &fakeConn{fail: true}, &fakeConn{}
	r.Join("d1", RoleDriver, dead)
	r.Join("d1", RoleDriver, live)

	require.True(t, r.SendTo("d1", "offer"))
	assert.True(t, dead.closed)
	assert.Equal(t, 1, live.count())

	// Dead conn is gone; next send only reaches the live one.
	require.True(t, r.SendTo("d1", "again"))
	assert.Equal(t, 2, live.count())
}

func TestOnDriverGoneFiresOnLastLeave(t *testing.T) {
	r := New(util.New())
	var goneID string
	r.OnDriverGone = func(id string) { goneID = id }

	a, b := &fakeConn{}, &fakeConn{}
	r.Join("d1", RoleDriver, a)
	r.Join("d1", RoleDriver, b)

	r.Leave("d1", a)
	assert.Empty(t, goneID, "callback must wait for the last connection")

	r.Leave("d1", b)
	assert.Equal(t, "d1", goneID)
	assert.False(t, r.Connected("d1"))
}
