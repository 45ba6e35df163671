package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqwyf/dialogtrace/model"
)

func TestDialogMerge_ThirdConflictingRoleNameAborts(t *testing.T) {
	m := New()

	require.NoError(t, m.AddDialog(model.Dialog{
		ID: 100, Role: model.RoleUnknown, RoleNameHash: "", NextDialogs: []int{200}, Trusted: true,
	}))
	require.NoError(t, m.AddDialog(model.Dialog{
		ID: 100, Role: 5, RoleNameHash: "42", NextDialogs: []int{201}, Trusted: true,
	}))

	got := m.Dialogs()[100]
	assert.Equal(t, 5, got.Role)
	assert.Equal(t, "42", got.RoleNameHash)
	assert.Equal(t, []int{200, 201}, got.NextDialogs)

	err := m.AddDialog(model.Dialog{ID: 100, RoleNameHash: "43", Trusted: true})
	assert.ErrorIs(t, err, ErrMergeConflict)
}

func TestDialogMerge_Idempotent(t *testing.T) {
	m := New()
	d := model.Dialog{ID: 1, Role: 0, ContentHash: "h1", NextDialogs: []int{2, 3}, Trusted: true}
	require.NoError(t, m.AddDialog(d))
	require.NoError(t, m.AddDialog(d))
	assert.Equal(t, []int{2, 3}, m.Dialogs()[1].NextDialogs)
}

func TestDialogMerge_KeepsAuthoredNextDialogOrder(t *testing.T) {
	// Next-dialog order is meaningful downstream (fan linearization keeps
	// the first-listed option first), so the stored record must not be
	// re-sorted, and a duplicate differing only in list order is equal.
	m := New()
	require.NoError(t, m.AddDialog(model.Dialog{
		ID: 1, Role: 0, ContentHash: "h1", NextDialogs: []int{5, 2}, Trusted: true,
	}))
	require.NoError(t, m.AddDialog(model.Dialog{
		ID: 1, Role: 0, ContentHash: "h1", NextDialogs: []int{2, 5}, Trusted: true,
	}))
	assert.Equal(t, []int{5, 2}, m.Dialogs()[1].NextDialogs)
}

func TestDialogMerge_UntrustedYields(t *testing.T) {
	m := New()
	require.NoError(t, m.AddDialog(model.Dialog{ID: 1, Role: 5, ContentHash: "h", Trusted: true}))
	require.NoError(t, m.AddDialog(model.Dialog{ID: 1, Role: 99, ContentHash: "other", Trusted: false}))
	assert.Equal(t, 5, m.Dialogs()[1].Role)
}

func TestDialogMerge_TrustedReplacesUntrusted(t *testing.T) {
	m := New()
	require.NoError(t, m.AddDialog(model.Dialog{ID: 1, Role: 5, ContentHash: "h", Trusted: false}))
	require.NoError(t, m.AddDialog(model.Dialog{ID: 1, Role: 9, ContentHash: "h2", Trusted: true}))
	assert.Equal(t, 9, m.Dialogs()[1].Role)
	assert.Equal(t, "h2", m.Dialogs()[1].ContentHash)
}

func TestTalkMerge_ConflictFailsFast(t *testing.T) {
	m := New()
	require.NoError(t, m.AddTalk(model.Talk{ID: 1, InitDialog: 10, Trusted: true}))
	err := m.AddTalk(model.Talk{ID: 1, InitDialog: 20, Trusted: true})
	assert.ErrorIs(t, err, ErrMergeConflict)
}

func TestTalkMerge_UntrustedYieldsToTrusted(t *testing.T) {
	m := New()
	require.NoError(t, m.AddTalk(model.Talk{ID: 1, InitDialog: 10, Trusted: false}))
	require.NoError(t, m.AddTalk(model.Talk{ID: 1, InitDialog: 20, Trusted: true}))
	assert.Equal(t, 20, m.Talks()[1].InitDialog)
}

func TestTalkMerge_EqualNextTalkOrderIrrelevant(t *testing.T) {
	m := New()
	require.NoError(t, m.AddTalk(model.Talk{ID: 1, NextTalks: []int{3, 1, 2}, Trusted: true}))
	err := m.AddTalk(model.Talk{ID: 1, NextTalks: []int{1, 2, 3}, Trusted: true})
	assert.NoError(t, err)
}
