package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/document"
)

const testMetadata = `{
  "devices": {
    "dimmer": {
      "class_name": "Tplink",
      "config_name": "dimmer",
      "config_template": {"_type": "dimmer", "nickname": "placeholder", "ip": "placeholder", "default_rule": "placeholder", "schedule": {}},
      "rule_limits": [0, 100],
      "rule_prompt": "int_range"
    },
    "relay": {
      "class_name": "Relay",
      "config_name": "relay",
      "config_template": {"_type": "relay", "nickname": "placeholder", "pin": "placeholder", "default_rule": "placeholder", "schedule": {}},
      "rule_prompt": "on_off"
    }
  },
  "sensors": {
    "si7021": {
      "class_name": "Thermostat",
      "config_name": "si7021",
      "config_template": {"_type": "si7021", "nickname": "placeholder", "units": "celsius", "targets": [], "default_rule": "placeholder", "schedule": {}},
      "rule_limits": [18, 27],
      "rule_prompt": "thermostat"
    }
  }
}`

type fakeUploader struct {
	payloads [][]byte
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, payload []byte) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

// newSession returns a controller whose document has one valid dimmer.
func newSession(t *testing.T) (*Controller, *document.Document) {
	t.Helper()
	meta, err := catalog.ParseMetadata([]byte(testMetadata))
	if err != nil {
		t.Fatalf("ParseMetadata() error = %v", err)
	}
	doc := document.New(meta, nil)
	_ = doc.SetMetadata("id", "Office")
	id := doc.AddInstance(catalog.Device)
	must(t, doc.SetType(id, "dimmer"))
	must(t, doc.SetField(id, document.FieldNickname, "Desk lamp"))
	must(t, doc.SetField(id, document.FieldIP, "192.168.1.20"))
	return New(doc), doc
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func hasRef(refs []FieldRef, id, field string) bool {
	for _, r := range refs {
		if r.InstanceID == id && r.Field == field {
			return true
		}
	}
	return false
}

func TestIntRangeScenario(t *testing.T) {
	c, doc := newSession(t)
	if !c.Next() {
		t.Fatalf("identity page blocked: %v", c.InvalidFields(PageIdentity))
	}

	must(t, doc.SetField("device1", document.FieldDefaultRule, "150"))
	if c.CanAdvance(PageRules) {
		t.Fatal("CanAdvance(rules) with out-of-range rule")
	}
	if c.Next() {
		t.Fatal("Next() advanced past invalid rule")
	}
	if !c.HighlightInvalid() {
		t.Fatal("blocked advance did not set highlight")
	}
	if !hasRef(c.Highlighted(), "device1", document.FieldDefaultRule) {
		t.Errorf("Highlighted() = %v, want device1.default_rule", c.Highlighted())
	}

	must(t, doc.SetField("device1", document.FieldDefaultRule, "55"))
	if c.HighlightInvalid() {
		t.Error("highlight not cleared once the page became valid")
	}
	if !c.Next() || c.Page() != PageSchedule {
		t.Errorf("Next() did not reach schedule page, at %v", c.Page())
	}
}

func TestIncompleteValuesNotHighlightedWhileTyping(t *testing.T) {
	c, doc := newSession(t)
	c.Next()

	must(t, doc.SetField("device1", document.FieldDefaultRule, "5."))
	if len(c.Highlighted()) != 0 {
		t.Errorf("Highlighted() while typing = %v", c.Highlighted())
	}
	if c.CanAdvance(PageRules) {
		t.Error("incomplete value accepted for navigation")
	}

	c.Next()
	if !hasRef(c.Highlighted(), "device1", document.FieldDefaultRule) {
		t.Error("incomplete value not highlighted after blocked advance")
	}
}

func TestIdentityGuard(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*document.Document)
		field FieldRef
	}{
		{"missing node id", func(d *document.Document) { _ = d.SetMetadata("id", "") }, FieldRef{"", "metadata.id"}},
		{"empty nickname", func(d *document.Document) { _ = d.SetField("device1", document.FieldNickname, "") }, FieldRef{"device1", "nickname"}},
		{"partial ip", func(d *document.Document) { _ = d.SetField("device1", document.FieldIP, "192.168.1") }, FieldRef{"device1", "ip"}},
		{"bad ip", func(d *document.Document) { _ = d.SetField("device1", document.FieldIP, "300.1.1.1") }, FieldRef{"device1", "ip"}},
		{"untyped instance", func(d *document.Document) { d.AddInstance(catalog.Sensor) }, FieldRef{"sensor1", "_type"}},
		{"bad pin", func(d *document.Document) {
			id := d.AddInstance(catalog.Device)
			_ = d.SetType(id, "relay")
			_ = d.SetField(id, document.FieldNickname, "Fan")
			_ = d.SetField(id, document.FieldPin, "5")
		}, FieldRef{"device2", "pin"}},
		{"ir blaster without pin", func(d *document.Document) { d.EnableIRBlaster("") }, FieldRef{"", "ir_blaster.pin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, doc := newSession(t)
			tt.setup(doc)
			if c.CanAdvance(PageIdentity) {
				t.Fatal("CanAdvance(identity) = true")
			}
			if !hasRef(c.InvalidFields(PageIdentity), tt.field.InstanceID, tt.field.Field) {
				t.Errorf("InvalidFields() = %v, want %v", c.InvalidFields(PageIdentity), tt.field)
			}
		})
	}
}

func TestDuplicateNicknameBlocksIdentity(t *testing.T) {
	c, doc := newSession(t)
	id := doc.AddInstance(catalog.Device)
	must(t, doc.SetType(id, "relay"))
	must(t, doc.SetField(id, document.FieldPin, "4"))
	must(t, doc.SetField(id, document.FieldNickname, "desk LAMP"))

	if c.Next() {
		t.Fatal("advanced with duplicate nicknames")
	}
	refs := c.Highlighted()
	if !hasRef(refs, "device1", "nickname") || !hasRef(refs, id, "nickname") {
		t.Errorf("Highlighted() = %v", refs)
	}

	must(t, doc.SetField(id, document.FieldNickname, "Fan"))
	if c.HighlightInvalid() || !c.Next() {
		t.Error("rename did not unblock identity page")
	}
}

func TestBackAlwaysAllowed(t *testing.T) {
	c, doc := newSession(t)
	c.Next()
	must(t, doc.SetField("device1", document.FieldDefaultRule, "abc"))

	if !c.Back() || c.Page() != PageIdentity {
		t.Errorf("Back() failed, at %v", c.Page())
	}
	if c.Back() {
		t.Error("Back() from the first page should be a no-op")
	}
}

func TestSubmit(t *testing.T) {
	c, doc := newSession(t)
	c.Next()
	c.Next()

	key, err := doc.AddScheduleRule("device1")
	must(t, err)

	up := &fakeUploader{}
	if err := c.Submit(context.Background(), up); !errors.Is(err, ErrNotSubmittable) {
		t.Fatalf("Submit() with placeholder trigger error = %v", err)
	}
	if len(up.payloads) != 0 || !c.HighlightInvalid() {
		t.Error("blocked submission uploaded or did not highlight")
	}
	if !hasRef(c.Highlighted(), "device1", "schedule."+key) {
		t.Errorf("Highlighted() = %v", c.Highlighted())
	}

	must(t, doc.RekeyScheduleRule("device1", key, "08:00"))
	if c.HighlightInvalid() {
		t.Error("highlight kept after schedule fixed")
	}

	up.err = errors.New("remote filesystem conflict")
	before, _ := doc.Snapshot()
	if err := c.Submit(context.Background(), up); err == nil {
		t.Fatal("Submit() swallowed upload error")
	}
	after, _ := doc.Snapshot()
	if string(before) != string(after) || c.Document() == nil || c.Done() {
		t.Error("failed submission changed the session")
	}

	up.err = nil
	if err := c.Submit(context.Background(), up); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !c.Done() || c.Document() != nil {
		t.Error("successful submission did not end the session")
	}
	if err := c.Submit(context.Background(), up); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("second Submit() error = %v", err)
	}
}

func TestScheduleSentinelOnNumericVariant(t *testing.T) {
	c, doc := newSession(t)
	key, _ := doc.AddScheduleRule("device1")
	must(t, doc.RekeyScheduleRule("device1", key, "sunset"))
	must(t, doc.EditScheduleRule("device1", "sunset", "disabled"))

	if !c.Submittable() {
		t.Errorf("sentinel schedule rejected: %v", c.InvalidFields(PageSchedule))
	}

	must(t, doc.EditScheduleRule("device1", "sunset", "101"))
	if c.Submittable() {
		t.Error("out-of-range scheduled rule accepted")
	}
}

func TestRekeyConflictHighlighted(t *testing.T) {
	c, doc := newSession(t)
	k, _ := doc.AddScheduleRule("device1")
	must(t, doc.RekeyScheduleRule("device1", k, "08:00"))
	k, _ = doc.AddScheduleRule("device1")

	if err := doc.RekeyScheduleRule("device1", k, "08:00"); !errors.Is(err, document.ErrKeyConflict) {
		t.Fatalf("RekeyScheduleRule() error = %v", err)
	}
	if !hasRef(c.InvalidFields(PageSchedule), "device1", "schedule.08:00") {
		t.Errorf("conflict not reported: %v", c.InvalidFields(PageSchedule))
	}
}
