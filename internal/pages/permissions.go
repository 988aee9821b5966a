// internal/pages/permissions.go
package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/render"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

// Role is a permission level shown in the permissions table.
type Role string

const (
	RoleManager      Role = "Manager"
	RoleCollaborator Role = "Collaborator"
	RoleContributor  Role = "Contributor"
	RoleConsumer     Role = "Consumer"
	RoleCoordinator  Role = "Coordinator"
	RoleEditor       Role = "Editor"
	RoleSiteManager  Role = "Site Manager"
)

var roles = []Role{RoleManager, RoleCollaborator, RoleContributor, RoleConsumer, RoleCoordinator, RoleEditor, RoleSiteManager}

func roleKey(s string) string { return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) }

// ParseRole matches the text of a role cell, ignoring case and spaces.
func ParseRole(text string) (Role, error) {
	key := roleKey(text)
	for _, r := range roles {
		if roleKey(string(r)) == key {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", text)
}

// Answer is a button of the "are you sure" dialog.
type Answer string

const (
	AnswerYes Answer = "Yes"
	AnswerNo  Answer = "No"
)

var (
	addUserButton     = locator.CSS("div.add-user-group button")
	permSaveButton    = locator.CSS("button[id$='-okButton-button']")
	permCancelButton  = locator.CSS("button[id$='-cancelButton-button']")
	inheritToggle     = locator.CSS("div[id$='_default-inheritedButtonContainer']")
	inheritToggleBtn  = locator.CSS("div[id$='_default-inheritedButtonContainer'] button")
	inheritOnMarker   = locator.CSS("div[class$='inherited-on']")
	inheritedTable    = locator.CSS("div[id$='_default-inheritedPermissions']")
	directTable       = locator.CSS("div[id$='_default-directPermissions']")
	userRows          = locator.CSS("div[id$='default-directPermissions'] tr[class^='yui-dt-rec']")
	userNameCell      = locator.CSS("td[class$='displayName']")
	userRoleCell      = locator.CSS("td[class*='role']")
	userRoleButton    = locator.CSS("td[class*='role'] button")
	userDeleteLink    = locator.CSS("a[class$='action-link']")
	areYouSureButtons = locator.CSS("span.button-group span span button")
	userRowByName     = locator.XPathTemplate("//div[contains(@id, 'default-directPermissions')]//td/div[contains(text(),'%s')]/../..")
)

// ManagePermissions is the permissions page of a document or folder.
type ManagePermissions struct {
	s   *session.Session
	log *zap.Logger
}

func NewManagePermissions(s *session.Session) *ManagePermissions {
	return &ManagePermissions{s: s, log: s.Logger().Named("permissions")}
}

func (p *ManagePermissions) ctx(ctx context.Context) context.Context {
	return wait.WithPage(ctx, "manage-permissions")
}

// Contract requires the toolbar buttons, and the inherited permissions
// panel only while the inherit toggle is on. The toggle is read once.
func (p *ManagePermissions) Contract() render.Contract {
	return render.Contract{
		Page: "manage-permissions",
		Markers: []render.Marker{
			{Name: "add user", Condition: wait.Visible(addUserButton)},
			{Name: "save", Condition: wait.Visible(permSaveButton)},
			{Name: "cancel", Condition: wait.Visible(permCancelButton)},
			{
				Name:      "inherited permissions",
				Condition: wait.Visible(inheritedTable),
				Gate:      wait.AttributeContains(inheritToggle, "class", "on"),
			},
		},
	}
}

func (p *ManagePermissions) Render(ctx context.Context) error {
	_, err := p.Contract().Render(ctx, p.s)
	return err
}

// IsInheritPermissionEnabled gives the inherited table half a second.
func (p *ManagePermissions) IsInheritPermissionEnabled(ctx context.Context) (bool, error) {
	return wait.Until(p.ctx(ctx), p.s, wait.Visible(inheritedTable), permissionPanelTimeout)
}

// IsLocallyPermissionEnabled gives the direct permissions table half a second.
func (p *ManagePermissions) IsLocallyPermissionEnabled(ctx context.Context) (bool, error) {
	return wait.Until(p.ctx(ctx), p.s, wait.Visible(directTable), permissionPanelTimeout)
}

func (p *ManagePermissions) inheritOn(ctx context.Context) (bool, error) {
	return wait.Until(ctx, p.s, wait.Visible(inheritOnMarker), p.s.Policy().DefaultWait)
}

// ToggleInheritPermission switches inheritance to on, clicking only when
// the toggle is in the other state. Turning it off may raise a dialog,
// answered with answer when it shows up. The page is rendered again
// afterwards.
func (p *ManagePermissions) ToggleInheritPermission(ctx context.Context, on bool, answer Answer) error {
	ctx = p.ctx(ctx)
	current, err := p.inheritOn(ctx)
	if err != nil {
		return err
	}
	if on != current {
		p.log.Info("Toggling inherited permissions.", zap.Bool("on", on))
		if _, err := render.Perform(ctx, p.s, action(p.s, "toggle inherit", inheritToggleBtn)); err != nil {
			return err
		}
		if !on {
			if err := p.answerDialog(ctx, answer); err != nil {
				return err
			}
		}
	}
	return p.Render(ctx)
}

// answerDialog clicks the matching dialog button if the dialog is there.
// The dialog only appears the first time inheritance is turned off.
func (p *ManagePermissions) answerDialog(ctx context.Context, answer Answer) error {
	return wait.Do(ctx, p.s, "answer dialog", func(ctx context.Context) error {
		res, err := wait.Probe(ctx, p.s, areYouSureButtons)
		if err != nil {
			return err
		}
		for _, button := range res.Elements {
			text, err := button.Text(ctx)
			if err != nil {
				return err
			}
			if text == string(answer) {
				return button.Click(ctx)
			}
		}
		p.log.Debug("No confirmation dialog to answer.", zap.String("answer", string(answer)))
		return nil
	})
}

// SelectSave clicks save and waits, leniently, for the save button to be
// removed from the DOM.
func (p *ManagePermissions) SelectSave(ctx context.Context) error {
	ctx = p.ctx(ctx)
	var id string
	save := action(p.s, "save permissions", permSaveButton)
	save.Do = func(ctx context.Context, el driver.Element) error {
		v, err := el.Attribute(ctx, "id")
		if err != nil {
			return err
		}
		id = v
		return el.Click(ctx)
	}
	_, err := render.Perform(ctx, p.s, save)
	if err != nil {
		return err
	}
	if id == "" {
		p.log.Debug("Save button has no id; not waiting for it to go.")
		return nil
	}
	_, err = render.Confirm(ctx, p.s, wait.Spec{Condition: wait.Deleted(locator.ID(id)), Timeout: p.s.Policy().PageLoad})
	return err
}

// SelectCancel clicks cancel and waits, leniently, for the page to go.
func (p *ManagePermissions) SelectCancel(ctx context.Context) error {
	cancel := action(p.s, "cancel permissions", permCancelButton, wait.Deleted(permCancelButton))
	cancel.ConfirmTimeout = p.s.Policy().PageLoad
	_, err := render.Perform(p.ctx(ctx), p.s, cancel)
	return err
}

// IsUserExistForPermission reports whether any direct permission row names
// the user. The table gets ten seconds to show up.
func (p *ManagePermissions) IsUserExistForPermission(ctx context.Context, name string) (bool, error) {
	ctx = p.ctx(ctx)
	return wait.RetryOnStale(ctx, p.s, "find user "+name, func(ctx context.Context) (bool, error) {
		rows, err := wait.FindAll(ctx, p.s, userRows, userListTimeout)
		if errors.Is(err, wait.ErrTimedOut) {
			p.log.Warn("Permission table did not show up.", zap.String("user", name), zap.Error(err))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		for _, row := range rows {
			text, err := childText(ctx, row, userNameCell)
			if err != nil {
				return false, err
			}
			if strings.Contains(text, name) {
				return true, nil
			}
		}
		return false, nil
	})
}

// UserRole reads the role button of the user's row.
func (p *ManagePermissions) UserRole(ctx context.Context, name string) (Role, error) {
	ctx = p.ctx(ctx)
	return wait.RetryOnStale(ctx, p.s, "read role of "+name, func(ctx context.Context) (Role, error) {
		row, err := wait.Find(ctx, p.s, userRowByName.With(name), p.s.Policy().DefaultWait)
		if err != nil {
			return "", fmt.Errorf("no permission row for %q: %w", name, err)
		}
		text, err := childText(ctx, row, userRoleButton)
		if err != nil {
			return "", err
		}
		return ParseRole(text)
	})
}

// DeleteUserWithPermission clicks the delete link of the row matching both
// name and role. A row that goes stale mid-way is looked up again, up to
// the session stale-retry limit.
func (p *ManagePermissions) DeleteUserWithPermission(ctx context.Context, name string, role Role) error {
	ctx = p.ctx(ctx)
	return wait.Do(ctx, p.s, "delete permission of "+name, func(ctx context.Context) error {
		rows, err := wait.FindAll(ctx, p.s, userRows, p.s.Policy().DefaultWait)
		if err != nil {
			return err
		}
		for _, row := range rows {
			text, err := childText(ctx, row, userNameCell)
			if err != nil {
				return err
			}
			if !strings.Contains(text, name) {
				continue
			}
			roleText, err := childText(ctx, row, userRoleCell)
			if err != nil {
				return err
			}
			if got, err := ParseRole(roleText); err != nil || got != role {
				continue
			}
			links, err := row.FindElements(ctx, userDeleteLink)
			if err != nil {
				return err
			}
			if len(links) == 0 {
				return fmt.Errorf("no delete link for %q as %s: %w", name, role, wait.ErrNotFound)
			}
			p.log.Info("Deleting permission.", zap.String("user", name), zap.String("role", string(role)))
			return links[0].Click(ctx)
		}
		return fmt.Errorf("no %s permission row for %q: %w", role, name, wait.ErrNotFound)
	})
}
