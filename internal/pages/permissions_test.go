// internal/pages/permissions_test.go
package pages

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/renderwait/internal/driver/fake"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

// permissionsShell installs the toolbar and an inherit toggle with class.
func (f *fixture) permissionsShell(toggleClass string) {
	f.drv.On(addUserButton, fake.Always(fake.NewNode("Add User or Group")))
	f.drv.On(permSaveButton, fake.Always(fake.NewNode("Save")))
	f.drv.On(permCancelButton, fake.Always(fake.NewNode("Cancel")))
	f.drv.On(inheritToggle, fake.Always(fake.NewNode("").WithAttr("class", toggleClass)))
}

func userRow(name, role string) *fake.Node {
	return fake.NewNode("").
		WithChild(userNameCell, fake.NewNode(name)).
		WithChild(userRoleCell, fake.NewNode(role)).
		WithChild(userRoleButton, fake.NewNode(role))
}

func TestPermissionsRender(t *testing.T) {
	ctx := context.Background()

	t.Run("InheritOffSkipsPanel", func(t *testing.T) {
		f := newFixture(t)
		f.permissionsShell("toggle-off")
		require.NoError(t, NewManagePermissions(f.s).Render(ctx))
		assert.Equal(t, 1, f.drv.Calls(inheritToggle), "the toggle is read once")
		assert.Zero(t, f.drv.Calls(inheritedTable))
	})

	t.Run("InheritOnWaitsForPanel", func(t *testing.T) {
		f := newFixture(t)
		f.permissionsShell("toggle on")
		f.drv.On(inheritedTable, fake.AppearsAt(time.Second, fake.NewNode("")))
		require.NoError(t, NewManagePermissions(f.s).Render(ctx))
		assert.Equal(t, time.Second, f.elapsed())
	})

	t.Run("MissingToggleSkipsPanel", func(t *testing.T) {
		f := newFixture(t)
		f.drv.On(addUserButton, fake.Always(fake.NewNode("")))
		f.drv.On(permSaveButton, fake.Always(fake.NewNode("")))
		f.drv.On(permCancelButton, fake.Always(fake.NewNode("")))
		require.NoError(t, NewManagePermissions(f.s).Render(ctx))
		assert.Zero(t, f.drv.Calls(inheritedTable))
	})

	t.Run("InheritOnWithoutPanelTimesOut", func(t *testing.T) {
		f := newFixture(t)
		f.permissionsShell("toggle on")
		err := NewManagePermissions(f.s).Render(ctx)
		assert.ErrorIs(t, err, wait.ErrTimedOut)
		assert.Equal(t, 6*time.Second, f.elapsed())
	})
}

func TestPermissionsPanels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.drv.On(directTable, fake.Always(fake.NewNode("")))
	p := NewManagePermissions(f.s)

	local, err := p.IsLocallyPermissionEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, local)

	before := f.elapsed()
	inherited, err := p.IsInheritPermissionEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, inherited)
	assert.Equal(t, 500*time.Millisecond, f.elapsed()-before)
}

func TestToggleInheritPermission(t *testing.T) {
	ctx := context.Background()

	t.Run("TurnOffAnswersDialog", func(t *testing.T) {
		f := newFixture(t)
		f.permissionsShell("toggle-off")
		f.drv.On(inheritOnMarker, fake.Always(fake.NewNode("")))
		toggle := fake.NewNode("Inherit")
		f.drv.On(inheritToggleBtn, fake.Always(toggle))
		yes, no := fake.NewNode("Yes"), fake.NewNode("No")
		f.drv.On(areYouSureButtons, fake.Always(no, yes))

		require.NoError(t, NewManagePermissions(f.s).ToggleInheritPermission(ctx, false, AnswerYes))
		assert.Equal(t, 1, toggle.Clicks())
		assert.Equal(t, 1, yes.Clicks())
		assert.Zero(t, no.Clicks())
	})

	t.Run("AlreadyOnDoesNotClick", func(t *testing.T) {
		f := newFixture(t)
		f.permissionsShell("toggle on")
		f.drv.On(inheritedTable, fake.Always(fake.NewNode("")))
		f.drv.On(inheritOnMarker, fake.Always(fake.NewNode("")))
		toggle := fake.NewNode("Inherit")
		f.drv.On(inheritToggleBtn, fake.Always(toggle))

		require.NoError(t, NewManagePermissions(f.s).ToggleInheritPermission(ctx, true, AnswerYes))
		assert.Zero(t, toggle.Clicks())
	})

	t.Run("TurnOnWithoutDialog", func(t *testing.T) {
		f := newFixture(t)
		f.permissionsShell("toggle-off")
		toggle := fake.NewNode("Inherit")
		f.drv.On(inheritToggleBtn, fake.Always(toggle))

		require.NoError(t, NewManagePermissions(f.s).ToggleInheritPermission(ctx, true, AnswerNo))
		assert.Equal(t, 1, toggle.Clicks())
		assert.Zero(t, f.drv.Calls(areYouSureButtons))
	})
}

func TestSelectSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var gone atomic.Bool
	save := fake.NewNode("Save").WithAttr("id", "perm-okButton-button").OnClick(func() { gone.Store(true) })
	f.drv.On(permSaveButton, fake.Always(save))
	f.drv.On(locator.ID("perm-okButton-button"), fake.Dynamic(func() []*fake.Node {
		if gone.Load() {
			return nil
		}
		return []*fake.Node{save}
	}))

	require.NoError(t, NewManagePermissions(f.s).SelectSave(ctx))
	assert.Equal(t, 1, save.Clicks())
	assert.Empty(t, f.rec.Filter(report.KindConfirm))
}

func TestSelectCancelIsLenient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.drv.On(permCancelButton, fake.Always(fake.NewNode("Cancel")))

	require.NoError(t, NewManagePermissions(f.s).SelectCancel(ctx))
	confirms := f.rec.Filter(report.KindConfirm)
	require.Len(t, confirms, 1)
	assert.Equal(t, report.OutcomeLenient, confirms[0].Outcome)
	assert.Equal(t, 6*time.Second, f.elapsed())
}

func TestPermissionRows(t *testing.T) {
	ctx := context.Background()

	t.Run("UserExists", func(t *testing.T) {
		f := newFixture(t)
		f.drv.On(userRows, fake.Always(userRow("Alice Adams", "Collaborator"), userRow("Bob Brown", "Consumer")))
		p := NewManagePermissions(f.s)

		ok, err := p.IsUserExistForPermission(ctx, "Bob")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = p.IsUserExistForPermission(ctx, "Carol")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("MissingTableIsFalseAfterTenSeconds", func(t *testing.T) {
		f := newFixture(t)
		ok, err := NewManagePermissions(f.s).IsUserExistForPermission(ctx, "Alice")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 10*time.Second, f.elapsed())
	})

	t.Run("UserRole", func(t *testing.T) {
		f := newFixture(t)
		f.drv.On(userRowByName.With("Alice"), fake.Always(userRow("Alice Adams", "Site Manager")))
		role, err := NewManagePermissions(f.s).UserRole(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, RoleSiteManager, role)

		_, err = NewManagePermissions(f.s).UserRole(ctx, "Nobody")
		assert.ErrorIs(t, err, wait.ErrNotFound)
	})

	t.Run("DeleteMatchesNameAndRole", func(t *testing.T) {
		f := newFixture(t)
		del := fake.NewNode("Remove")
		f.drv.On(userRows, fake.Always(
			userRow("Alice Adams", "Consumer").WithChild(userDeleteLink, fake.NewNode("Remove")),
			userRow("Alice Adams", "Collaborator").WithChild(userDeleteLink, del),
		))
		p := NewManagePermissions(f.s)

		require.NoError(t, p.DeleteUserWithPermission(ctx, "Alice", RoleCollaborator))
		assert.Equal(t, 1, del.Clicks())
		assert.ErrorIs(t, p.DeleteUserWithPermission(ctx, "Alice", RoleManager), wait.ErrNotFound)
	})

	t.Run("DeleteRetriesStaleRow", func(t *testing.T) {
		f := newFixture(t)
		del := fake.NewNode("Remove").StaleFor(2)
		f.drv.On(userRows, fake.Always(userRow("Bob Brown", "Editor").WithChild(userDeleteLink, del)))

		require.NoError(t, NewManagePermissions(f.s).DeleteUserWithPermission(ctx, "Bob", RoleEditor))
		assert.Equal(t, 1, del.Clicks())
		assert.Len(t, f.rec.Filter(report.KindStale), 2)
	})

	t.Run("DeleteGivesUpAfterLimit", func(t *testing.T) {
		f := newFixture(t)
		del := fake.NewNode("Remove").StaleFor(10)
		f.drv.On(userRows, fake.Always(userRow("Bob Brown", "Editor").WithChild(userDeleteLink, del)))

		err := NewManagePermissions(f.s).DeleteUserWithPermission(ctx, "Bob", RoleEditor)
		assert.ErrorIs(t, err, wait.ErrStaleRetriesExhausted)
		assert.Zero(t, del.Clicks())
	})
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"Manager":      RoleManager,
		"site manager": RoleSiteManager,
		" SITEMANAGER": RoleSiteManager,
		"Collaborator": RoleCollaborator,
	}
	for in, want := range tests {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseRole("Owner")
	assert.Error(t, err)
}
