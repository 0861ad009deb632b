package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pixelpanel/internal/reference"
)

func TestDefaultConfigIsValid(t *testing.T) {
	v := New()
	require.NoError(t, v.ValidateSnapshot(reference.DefaultConfig()))
}

func TestSchemaCoversDefaults(t *testing.T) {
	schema := DefaultSchema()
	for key := range reference.DefaultConfig() {
		assert.Contains(t, schema, key)
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	v := New()
	base := reference.DefaultConfig()

	err := v.Validate(base, map[string]any{"mqttPort": 70000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"Must be between 1 and 65535"}, verr.Fields["mqttPort"])
	assert.Len(t, verr.Fields, 1)
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	v := New()
	err := v.Validate(reference.DefaultConfig(), map[string]any{
		"matrixBrightness": -5,
		"initialVolume":    0,
		"hostname":         "this name is far too long",
		"noSuchKey":        1,
		"version":          "2.0",
	})

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Must be ≥ 0"}, verr.Fields["matrixBrightness"])
	assert.Equal(t, []string{"Must be between 1 and 30"}, verr.Fields["initialVolume"])
	assert.Equal(t, []string{"Max 20 characters", "Only letters, digits, _ and -"}, verr.Fields["hostname"])
	assert.Equal(t, []string{"Unknown setting."}, verr.Fields["noSuchKey"])
	assert.Equal(t, []string{"Read-only."}, verr.Fields["version"])
}

func TestValidate_DoesNotMutateInputs(t *testing.T) {
	v := New()
	base := reference.DefaultConfig()
	changes := map[string]any{"btn0Enabled": true, "btn0Pin": "Pin_D3"}

	_ = v.Validate(base, changes)

	assert.Equal(t, reference.DefaultConfig(), base)
	assert.Equal(t, map[string]any{"btn0Enabled": true, "btn0Pin": "Pin_D3"}, changes)
}

func TestPinUniqueness(t *testing.T) {
	tests := []struct {
		name      string
		changes   map[string]any
		wantField string
	}{
		{
			name:    "factory defaults share onewire and SCL",
			changes: map[string]any{},
		},
		{
			name:    "disabled button may reuse a pin",
			changes: map[string]any{"btn0Pin": "Pin_D3"},
		},
		{
			name:      "enabled button collides with SDA",
			changes:   map[string]any{"btn0Enabled": true, "btn0Pin": "Pin_D3"},
			wantField: "btn0Pin",
		},
		{
			name:      "enabling a button exposes a collision",
			changes:   map[string]any{"btn1Enabled": true, "dfpRXpin": "Pin_D4"},
			wantField: "dfpRXpin",
		},
		{
			name:      "SCL and SDA on the same pin",
			changes:   map[string]any{"SCLPin": "Pin_D3"},
			wantField: "SCLPin",
		},
		{
			name:    "onewire may share with SDA",
			changes: map[string]any{"onewirePin": "Pin_D3"},
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(reference.DefaultConfig(), tt.changes)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
		})
	}
}

func TestPinUniqueness_Message(t *testing.T) {
	view := NewView(reference.DefaultConfig(), map[string]any{"dfpTXpin": "Pin_D7"})
	errs := PinUniqueness.Check(view)

	assert.Contains(t, errs, FieldError{Field: "dfpRXpin", Message: "Pin_D7 is already used by DFPlayer TX"})
	assert.Contains(t, errs, FieldError{Field: "dfpTXpin", Message: "Pin_D7 is already used by DFPlayer RX"})
}

func TestValidateSnapshot_ReportsExistingConflicts(t *testing.T) {
	cfg := reference.DefaultConfig()
	cfg["btn2Enabled"] = true
	cfg["btn2Pin"] = "Pin_D8"

	v := New()
	var verr *Error
	require.ErrorAs(t, v.ValidateSnapshot(cfg), &verr)
	assert.Contains(t, verr.Fields, "btn2Pin")
	assert.Contains(t, verr.Fields, "dfpTXpin")

	// An unrelated edit is not blocked by the existing conflict.
	assert.NoError(t, v.Validate(cfg, map[string]any{"matrixBrightness": 50}))
}

func TestMQTTSettings(t *testing.T) {
	v := New()
	base := reference.DefaultConfig()

	err := v.Validate(base, map[string]any{"mqttAktiv": true, "mqttServer": ""})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Required."}, verr.Fields["mqttServer"])

	assert.NoError(t, v.Validate(base, map[string]any{"mqttAktiv": true, "mqttServer": "10.0.0.2"}))
}

func TestValidate_GatingFieldExposesConflict(t *testing.T) {
	v := New()

	t.Run("enabling a button on a taken pin", func(t *testing.T) {
		base := reference.DefaultConfig()
		base["btn1Pin"] = "Pin_D7"
		require.NoError(t, v.Validate(base, map[string]any{"matrixBrightness": 40}), "disabled button claims no pin")

		err := v.Validate(base, map[string]any{"btn1Enabled": true})
		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"Pin_D7 is already used by DFPlayer RX"}, verr.Fields["btn1Pin"])
		assert.Equal(t, []string{"Pin_D7 is already used by Button 1"}, verr.Fields["dfpRXpin"])
	})

	t.Run("switching mqtt on without a server", func(t *testing.T) {
		err := v.Validate(reference.DefaultConfig(), map[string]any{"mqttAktiv": true})
		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"Required."}, verr.Fields["mqttServer"])
	})
}

func TestBrightnessBounds(t *testing.T) {
	v := New()
	err := v.Validate(reference.DefaultConfig(), map[string]any{"mbaDimMax": 10})

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Must be ≥ mbaDimMin"}, verr.Fields["mbaDimMax"])
}

func TestView_Immutable(t *testing.T) {
	base := map[string]any{"a": 1}
	view := NewView(base, map[string]any{"b": 2})
	base["a"] = 99

	got, ok := view.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)
	assert.Equal(t, []string{"a", "b"}, view.Keys())
	assert.Equal(t, 2, view.Len())
}

func TestError_Message(t *testing.T) {
	err := &Error{Fields: map[string][]string{"b": {"y"}, "a": {"x", "z"}}}
	assert.Equal(t, "validation: failed: a: x, z; b: y", err.Error())
}

func TestFields(t *testing.T) {
	fields := New().Fields()
	require.NotEmpty(t, fields)
	for i := 1; i < len(fields); i++ {
		assert.Less(t, fields[i-1].Key, fields[i].Key)
	}
}
