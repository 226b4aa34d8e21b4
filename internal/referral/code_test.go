package referral

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeExcludesAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := GenerateCode()
		require.Len(t, code, CodeLength)
		for _, c := range "O0I1" {
			assert.NotContains(t, code, string(c), "code %q contains ambiguous character", code)
		}
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c))
		}
	}
}

type fakeCodeChecker struct {
	taken int // number of initial lookups that report a collision
	calls int
}

func (f *fakeCodeChecker) CodeExists(ctx context.Context, code string) (bool, error) {
	f.calls++
	return f.calls <= f.taken, nil
}

func TestUniqueCodeRetriesOnCollision(t *testing.T) {
	checker := &fakeCodeChecker{taken: 2}
	code, err := UniqueCode(context.Background(), checker)
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)
	assert.Equal(t, 3, checker.calls)
}

func TestUniqueCodeGivesUpEventually(t *testing.T) {
	checker := &fakeCodeChecker{taken: 100}
	_, err := UniqueCode(context.Background(), checker)
	assert.Error(t, err)
	assert.Equal(t, 5, checker.calls)
}
