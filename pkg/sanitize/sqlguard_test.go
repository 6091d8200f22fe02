package sanitize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateForInjection(t *testing.T) {
	tests := []struct {
		name  string
		input Value
		valid bool
	}{
		{"select statement", String("SELECT * FROM users"), false},
		{"tautology", String("admin' OR '1'='1"), false},
		{"stacked drop", String("1; DROP TABLE users; --"), false},
		{"script tag", String("<script>alert(1)</script>"), false},
		{"xp_cmdshell", String("xp_cmdshell"), false},
		{"sp_executesql", String("sp_executesql"), false},
		{"cmd.exe", String("run cmd.exe now"), false},
		{"lowercase keyword", String("union all"), false},
		{"comment opener", String("abc /* x"), false},
		{"pipe", String("a | b"), false},
		{"subshell", String("$(whoami)"), false},
		{"javascript url", String("javascript:alert(1)"), false},
		{"plain name", String("John Doe"), true},
		{"email", String("user@example.com"), true},
		{"product text", String("Product description 123"), true},
		{"keyword inside word", String("selection of dropdowns"), true},
		{"exp prefix", String("exp_date"), true},
		{"word ending in sh", String("finish"), false},
		{"bash suffix", String("rebash"), false},
		{"powershell", String("open powershell"), false},
		{"null", Null{}, true},
		{"nil", nil, true},
		{"number", Number("42"), true},
		{"bool", Bool(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateForInjection(tt.input, "field"))
		})
	}
}

func TestValidateForInjection_Containers(t *testing.T) {
	obj := NewObject()
	obj.Set("tags", Array{String("ok"), String("DROP TABLE x")})

	assert.False(t, ValidateForInjection(obj, "body"))
	assert.True(t, ValidateForInjection(Array{String("a"), Number("1")}, "body"))
}

func TestSanitizeForSQL_EscapesAndTrims(t *testing.T) {
	obj := NewObject()
	obj.Set("name", String("  John\nDoe\r\x00  "))
	obj.Set("age", Number("30"))
	obj.Set("tags", Array{String(" a "), Null{}})

	out, err := SanitizeForSQL(obj)
	require.NoError(t, err)

	b, err := out.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"name":"John\\nDoe\\r\\0","age":30,"tags":["a",null]}`, string(b))

	// input is not mutated
	orig, _ := obj.Get("name")
	assert.Equal(t, String("  John\nDoe\r\x00  "), orig)
}

func TestSanitizeForSQL_NamesOffendingField(t *testing.T) {
	inner := NewObject()
	inner.Set("street", String("12 Main St; --"))
	obj := NewObject()
	obj.Set("name", String("ok"))
	obj.Set("address", inner)

	_, err := SanitizeForSQL(obj)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSuspiciousInput))

	var injErr *InjectionError
	require.ErrorAs(t, err, &injErr)
	assert.Equal(t, "address.street", injErr.Field)
	assert.Equal(t, "sql_metachar", injErr.Pattern)
	assert.NotContains(t, injErr.Error(), "sql_metachar")
}

func TestSanitizeForSQL_RejectsSuspiciousKey(t *testing.T) {
	obj := NewObject()
	obj.Set("name; drop", String("x"))

	_, err := SanitizeForSQL(obj)
	var injErr *InjectionError
	require.ErrorAs(t, err, &injErr)
	assert.Equal(t, "key:name; drop", injErr.Field)
}

func TestSanitizeForSQL_ArrayPath(t *testing.T) {
	obj := NewObject()
	obj.Set("items", Array{String("fine"), String("x' OR 1")})

	_, err := SanitizeForSQL(obj)
	var injErr *InjectionError
	require.ErrorAs(t, err, &injErr)
	assert.Equal(t, "items[1]", injErr.Field)
}

func TestSQLGuard_ExemptFields(t *testing.T) {
	guard := NewSQLGuard(SQLGuardConfig{ExemptFields: []string{"description", " password "}})

	obj := NewObject()
	obj.Set("description", String("Please select a size; then drop it in the cart"))
	obj.Set("password", String("  P@ss'w0rd&  "))
	obj.Set("name", String("Widget"))

	out, err := guard.Sanitize(obj)
	require.NoError(t, err)

	got := out.(*Object)
	pw, _ := got.Get("password")
	assert.Equal(t, String("  P@ss'w0rd&  "), pw, "exempt values pass through untouched")

	obj.Set("name", String("DROP TABLE x"))
	assert.False(t, guard.Validate(obj, "body"), "non-exempt fields are still checked")

	bad := NewObject()
	bad.Set("description", String("ok"))
	bad.Set("x' --", String("ok"))
	assert.False(t, guard.Validate(bad, "body"), "keys are checked even beside exempt fields")
}
