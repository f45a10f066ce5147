package shell

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExampleParams_Shift() {
	params := NewParams("jobsh", []string{"a", "b", "c"})

	params.Shift(2)
	fmt.Printf("%q\n", params.Positional()[:3])
	// Output: ["c" "" ""]
}

func ExampleParams_Set() {
	params := NewParams("jobsh", []string{"a", "b", "c"})

	params.Set([]string{"x"})
	fmt.Printf("%q %q\n", params.Get(1), params.Get(2))
	// Output: "x" ""
}

func TestNewParams_dropsExtraArguments(t *testing.T) {
	args := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}
	params := NewParams("jobsh", args)

	assert.Equal(t, "jobsh", params.Get(0))
	assert.Equal(t, args[:9], params.Positional())
	assert.Equal(t, "", params.Get(10))
	assert.Equal(t, "", params.Get(-1))
}

func TestParams_Shift(t *testing.T) {
	params := NewParams("jobsh", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"})

	require.NoError(t, params.Shift(1))
	assert.Equal(t, []string{"b", "c", "d", "e", "f", "g", "h", "i", ""}, params.Positional())

	require.NoError(t, params.Shift(20))
	assert.Equal(t, make([]string, 9), params.Positional())
	assert.Equal(t, "jobsh", params.Get(0), "$0 never shifts")
}

func TestParams_ShiftArg(t *testing.T) {
	cases := map[string]struct {
		count string
		want  string
		err   bool
	}{
		"default":  {count: "", want: "b"},
		"explicit": {count: "2", want: "c"},
		"zero":     {count: "0", err: true},
		"negative": {count: "-1", err: true},
		"garbage":  {count: "x", err: true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			params := NewParams("jobsh", []string{"a", "b", "c"})
			err := params.ShiftArg(tc.count)
			if tc.err {
				assert.True(t, errors.Is(err, ErrBadShiftCount))
				assert.Equal(t, "a", params.Get(1), "failed shift leaves parameters alone")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, params.Get(1))
		})
	}
}

func TestParams_Var(t *testing.T) {
	params := NewParams("jobsh", []string{"a"})
	params.LookupEnv = func(key string) (string, bool) {
		if key == "EMPTY" {
			return "", true
		}
		return "", false
	}

	val, err := params.Var("1")
	require.NoError(t, err)
	assert.Equal(t, "a", val)

	val, err = params.Var("EMPTY")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	_, err = params.Var("MISSING")
	var undefined *UndefinedError
	require.True(t, errors.As(err, &undefined))
	assert.Equal(t, "MISSING", undefined.Name)
}
