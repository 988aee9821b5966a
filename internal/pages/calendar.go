// internal/pages/calendar.go
package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/render"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

// Tab is one of the calendar views.
type Tab int

const (
	TabDay Tab = iota
	TabWeek
	TabMonth
	TabAgenda
)

func (t Tab) String() string {
	switch t {
	case TabDay:
		return "day"
	case TabWeek:
		return "week"
	case TabMonth:
		return "month"
	case TabAgenda:
		return "agenda"
	}
	return fmt.Sprintf("tab(%d)", int(t))
}

// EventKind distinguishes how an event is drawn inside a tab.
type EventKind int

const (
	EventSingle EventKind = iota
	EventAllDay
	EventMultiDay
)

// EventType is where an event link lives: which tab, drawn which way.
type EventType struct {
	Tab  Tab
	Kind EventKind
}

var (
	siteHeader    = locator.CSS("div.share-header")
	viewContainer = locator.CSS("div[id*='defaultView']")
	addEventBtn   = locator.CSS("#template_x002e_toolbar_x002e_calendar_x0023_default-addEvent-button-button")

	tabButtons = map[Tab]locator.Locator{
		TabDay:    locator.CSS("button[id$='_default-day-button']"),
		TabWeek:   locator.CSS("button[id$='_default-week-button']"),
		TabMonth:  locator.CSS("button[id$='_default-month-button']"),
		TabAgenda: locator.CSS("button[id$='_default-agenda-button']"),
	}
	tabTables = map[Tab]locator.Locator{
		TabDay:    locator.CSS("div[class='fc-view fc-view-agendaDay fc-agenda']"),
		TabWeek:   locator.CSS("div[class='fc-view fc-view-agendaWeek fc-agenda']"),
		TabMonth:  locator.CSS("div[class='fc-view fc-view-month fc-grid']"),
		TabAgenda: locator.CSS("div.agendaview"),
	}
	addEventSlots = map[Tab]locator.Template{
		TabDay:   locator.XPathTemplate("//tr[contains(@class,'fc-slot%s')]//div"),
		TabWeek:  locator.XPathTemplate("//div[contains(@class,'agendaWeek')]//table[@class='fc-agenda-slots']/tbody/tr[%s]/td/div"),
		TabMonth: locator.XPathTemplate("//td[not(contains(@class,'fc-other-month'))]//div[@class='fc-day-content']/preceding-sibling::div[@class='fc-day-number' and text()='%s']"),
	}

	eventLinks = map[EventType]locator.Template{
		{TabDay, EventSingle}:      locator.XPathTemplate("//div[contains(@class,'agendaDay')]//div[contains(text(),'%s')]/../../parent::a"),
		{TabDay, EventAllDay}:      locator.XPathTemplate("//div[contains(@class,'agendaDay')]//span[contains(text(),'%s')]/../parent::a"),
		{TabDay, EventMultiDay}:    locator.XPathTemplate("//div[contains(@class,'agendaDay')]//div[contains(text(),'%s')]/../../parent::a"),
		{TabWeek, EventSingle}:     locator.XPathTemplate("//div[contains(@class,'agendaWeek')]//div[contains(text(),'%s')]/../../parent::a"),
		{TabWeek, EventAllDay}:     locator.XPathTemplate("//div[contains(@class,'agendaWeek')]//span[contains(text(),'%s')]/../parent::a"),
		{TabWeek, EventMultiDay}:   locator.XPathTemplate("//div[contains(@class,'agendaWeek')]//div[contains(text(),'%s')]/../../parent::a"),
		{TabMonth, EventSingle}:    locator.XPathTemplate("//div[contains(@class,'month')]//span[contains(text(),'%s')]/../parent::a"),
		{TabMonth, EventAllDay}:    locator.XPathTemplate("//div[contains(@class,'month')]//span[contains(text(),'%s')]/../parent::a"),
		{TabMonth, EventMultiDay}:  locator.XPathTemplate("//div[contains(@class,'month')]//span[contains(text(),'%s')]/../parent::a"),
		{TabAgenda, EventSingle}:   locator.XPathTemplate("//div[contains(@class,'agendaview')]//a[contains(text(),'%s')]"),
		{TabAgenda, EventAllDay}:   locator.XPathTemplate("//div[contains(@class,'agendaview')]//a[contains(text(),'%s')]"),
		{TabAgenda, EventMultiDay}: locator.XPathTemplate("//div[contains(@class,'agendaview')]//a[contains(text(),'%s')]"),
	}

	editPanel     = locator.CSS("div[id$='eventEditPanel-dialog']")
	infoPanel     = locator.CSS("div[id$='eventInfoPanel_c']")
	message       = locator.CSS(".message")
	showAllItems  = locator.CSS("a[rel='-all-']")
	tagLink       = locator.XPathTemplate("//a[@class='tag-link' and @rel='%s']")
	agendaRows    = locator.CSS("tbody[class*='data']>tr")
	agendaAddLink = locator.CSS("div[id*='defaultView']>span>a")

	formWhat        = locator.CSS("input[id$='eventEditPanel-title']")
	formWhere       = locator.CSS("input[id$='eventEditPanel-location']")
	formDescription = locator.CSS("textarea[id$='eventEditPanel-description']")
	formTags        = locator.CSS("input[id$='eventEditPanel-tag-input-field']")
	formAddTag      = locator.CSS("button[id$='eventEditPanel-add-tag-button']")
	formAllDay      = locator.CSS("input[id$='eventEditPanel-allday']")
	formSave        = locator.CSS("button[id$='eventEditPanel-ok-button']")

	infoDelete   = locator.CSS("button[id$='eventInfoPanel-delete-button']")
	deletePrompt = locator.CSS("div#prompt span.button-group span.yui-button:first-child button")
)

// EventForm holds the fields of the add-event dialog. Empty fields are left
// untouched.
type EventForm struct {
	// Via picks the tab whose slot opens the dialog. Nil uses the toolbar
	// button.
	Via         *Tab
	What        string
	Where       string
	Description string
	// Tags is a space separated list; the first tag is used to confirm
	// creation.
	Tags   string
	AllDay bool
}

// Calendar is the site calendar page.
type Calendar struct {
	s   *session.Session
	log *zap.Logger
}

func NewCalendar(s *session.Session) *Calendar {
	return &Calendar{s: s, log: s.Logger().Named("calendar")}
}

func (c *Calendar) ctx(ctx context.Context) context.Context { return wait.WithPage(ctx, "calendar") }

// Contract is the set of markers that make the calendar usable.
func (c *Calendar) Contract() render.Contract {
	return render.Contract{
		Page: "calendar",
		Markers: []render.Marker{
			{Name: "site header", Condition: wait.Visible(siteHeader)},
			{Name: "view container", Condition: wait.Visible(viewContainer)},
		},
	}
}

// Render waits for the calendar within the page-load timeout.
func (c *Calendar) Render(ctx context.Context) error {
	_, err := c.Contract().Render(ctx, c.s)
	return err
}

// ChooseTab switches views and waits for the chosen view to render.
func (c *Calendar) ChooseTab(ctx context.Context, tab Tab) error {
	ctx = c.ctx(ctx)
	button, ok := tabButtons[tab]
	if !ok {
		return fmt.Errorf("unknown calendar tab %s", tab)
	}
	c.log.Info("Choosing tab.", zap.Stringer("tab", tab))
	if _, err := render.Perform(ctx, c.s, action(c.s, "choose "+tab.String()+" tab", button, wait.Visible(tabTables[tab]))); err != nil {
		return err
	}
	return c.Render(ctx)
}

// IsTabOpened probes the tab's table once.
func (c *Calendar) IsTabOpened(ctx context.Context, tab Tab) (bool, error) {
	table, ok := tabTables[tab]
	if !ok {
		return false, fmt.Errorf("unknown calendar tab %s", tab)
	}
	return visibleOnce(c.ctx(ctx), c.s, table)
}

// IsAddEventPresent waits up to two seconds for the add-event button.
func (c *Calendar) IsAddEventPresent(ctx context.Context) (bool, error) {
	return wait.Until(c.ctx(ctx), c.s, wait.Visible(addEventBtn), addEventPresentTimeout)
}

// ClickAddEvent opens the add-event dialog from the toolbar. It fails if the
// button never shows up.
func (c *Calendar) ClickAddEvent(ctx context.Context) error {
	_, err := render.Perform(c.ctx(ctx), c.s, action(c.s, "add event", addEventBtn, wait.Visible(editPanel)))
	return err
}

// addEventTarget returns what to click to open the add-event dialog from tab.
func (c *Calendar) addEventTarget(via *Tab) locator.Locator {
	if via == nil {
		return addEventBtn
	}
	now := c.s.Clock().Now()
	switch *via {
	case TabDay:
		return addEventSlots[TabDay].With(strconv.Itoa(now.Hour()))
	case TabWeek:
		return addEventSlots[TabWeek].With(strconv.Itoa(now.Hour() * 2))
	case TabMonth:
		return addEventSlots[TabMonth].With(strconv.Itoa(now.Day()))
	}
	return addEventBtn
}

// CreateEvent fills and saves the add-event dialog, then waits, leniently,
// for the dialog and the "created" message to go away and for the first tag
// to show up.
func (c *Calendar) CreateEvent(ctx context.Context, form EventForm) error {
	ctx = c.ctx(ctx)
	c.log.Info("Creating event.", zap.String("what", form.What))
	if err := c.Render(ctx); err != nil {
		return err
	}
	if form.Via != nil {
		if err := c.ChooseTab(ctx, *form.Via); err != nil {
			return err
		}
	}
	if _, err := render.Perform(ctx, c.s, action(c.s, "open add event", c.addEventTarget(form.Via), wait.Visible(editPanel))); err != nil {
		return err
	}

	fields := []struct {
		name  string
		loc   locator.Locator
		value string
	}{
		{"what", formWhat, form.What},
		{"where", formWhere, form.Where},
		{"description", formDescription, form.Description},
		{"tags", formTags, form.Tags},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fill := action(c.s, "fill "+f.name, f.loc)
		fill.Do = render.Type(f.value)
		if _, err := render.Perform(ctx, c.s, fill); err != nil {
			return err
		}
	}
	if form.Tags != "" {
		if _, err := render.Perform(ctx, c.s, action(c.s, "add tag", formAddTag)); err != nil {
			return err
		}
	}
	if form.AllDay {
		if _, err := render.Perform(ctx, c.s, action(c.s, "all day", formAllDay)); err != nil {
			return err
		}
	}
	if _, err := render.Perform(ctx, c.s, action(c.s, "save event", formSave)); err != nil {
		return err
	}

	specs := []wait.Spec{
		defaultSpec(c.s, wait.Invisible(editPanel)),
		defaultSpec(c.s, wait.TextGone(message, "created")),
	}
	if tags := strings.Fields(form.Tags); len(tags) > 0 {
		specs = append(specs, defaultSpec(c.s, wait.Present(tagLink.With(tags[0]))))
	}
	_, err := render.Confirm(ctx, c.s, specs...)
	return err
}

// EventLink is the locator of the link for name in the given place.
func EventLink(et EventType, name string) (locator.Locator, error) {
	tmpl, ok := eventLinks[et]
	if !ok {
		return locator.Locator{}, fmt.Errorf("no event link for %s tab kind %d", et.Tab, et.Kind)
	}
	return tmpl.With(name), nil
}

// IsEventPresent probes the event link once, retrying only while it is stale.
func (c *Calendar) IsEventPresent(ctx context.Context, et EventType, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	loc, err := EventLink(et, name)
	if err != nil {
		return false, err
	}
	return visibleOnce(c.ctx(ctx), c.s, loc)
}

// ClickOnEvent opens the information panel of an event.
func (c *Calendar) ClickOnEvent(ctx context.Context, et EventType, name string) error {
	loc, err := EventLink(et, name)
	if err != nil {
		return err
	}
	c.log.Info("Opening event.", zap.String("name", name), zap.Stringer("tab", et.Tab))
	_, err = render.Perform(c.ctx(ctx), c.s, action(c.s, "open event "+name, loc, wait.Visible(infoPanel)))
	return err
}

// DeleteEvent opens the event from its tab, deletes it and waits, leniently,
// for the panel and message to go and for the link to leave the DOM.
func (c *Calendar) DeleteEvent(ctx context.Context, et EventType, name string) error {
	ctx = c.ctx(ctx)
	link, err := EventLink(et, name)
	if err != nil {
		return err
	}
	if err := c.ChooseTab(ctx, et.Tab); err != nil {
		return err
	}
	if err := c.ClickOnEvent(ctx, et, name); err != nil {
		return err
	}
	if _, err := render.Perform(ctx, c.s, action(c.s, "delete event", infoDelete)); err != nil {
		return err
	}
	if _, err := render.Perform(ctx, c.s, action(c.s, "confirm delete", deletePrompt)); err != nil {
		return err
	}
	_, err = render.Confirm(ctx, c.s,
		defaultSpec(c.s, wait.Invisible(infoPanel)),
		defaultSpec(c.s, wait.TextGone(message, "was deleted")),
		wait.Spec{Condition: wait.Deleted(link), Timeout: c.s.Policy().PageLoad},
	)
	return err
}

// IsTagPresent probes the tag link once, retrying only while it is stale.
func (c *Calendar) IsTagPresent(ctx context.Context, tag string) (bool, error) {
	return visibleOnce(c.ctx(ctx), c.s, tagLink.With(tag))
}

// ClickTagLink filters the calendar by tag.
func (c *Calendar) ClickTagLink(ctx context.Context, tag string) error {
	c.log.Info("Clicking tag link.", zap.String("tag", tag))
	_, err := render.Perform(c.ctx(ctx), c.s, action(c.s, "tag "+tag, tagLink.With(tag)))
	return err
}

// ShowAllItems clears any tag filter.
func (c *Calendar) ShowAllItems(ctx context.Context) error {
	_, err := render.Perform(c.ctx(ctx), c.s, action(c.s, "show all items", showAllItems))
	return err
}

// IsAddEventClickable reports whether events can be added from tab. The
// agenda allows it only while it is empty.
func (c *Calendar) IsAddEventClickable(ctx context.Context, tab Tab) (bool, error) {
	ctx = c.ctx(ctx)
	if tab == TabAgenda {
		n, err := c.CountAgendaEvents(ctx)
		if err != nil || n > 0 {
			return false, err
		}
		return visibleOnce(ctx, c.s, agendaAddLink)
	}
	return wait.RetryOnStale(ctx, c.s, "read view container class", func(ctx context.Context) (bool, error) {
		el, err := wait.Find(ctx, c.s, viewContainer, c.s.Policy().DefaultWait)
		if err != nil {
			return false, err
		}
		class, err := el.Attribute(ctx, "class")
		if err != nil {
			return false, err
		}
		return strings.Contains(class, "calendar-editable"), nil
	})
}

// CountAgendaEvents counts the rows of the agenda view without waiting.
func (c *Calendar) CountAgendaEvents(ctx context.Context) (int, error) {
	res, err := wait.Probe(c.ctx(ctx), c.s, agendaRows)
	if err != nil {
		return 0, err
	}
	if res.Outcome != wait.OutcomeVisible {
		return 0, nil
	}
	return res.Matches(), nil
}
