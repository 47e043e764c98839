package validator_test

import (
	"testing"

	"github.com/HibiKier/wuthering-waves/pkg/validator"
	"github.com/stretchr/testify/require"
)

type loginInput struct {
	Mobile string `json:"mobile" validate:"required,len=11,numeric"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

type relicHolder struct {
	ID     int   `json:"id" validate:"gt=0"`
	Relics []int `json:"relics" validate:"max=5"`
}

func TestValidator(t *testing.T) {
	v := validator.NewValidator()

	t.Run("valid input", func(t *testing.T) {
		require.NoError(t, v.Validate(&loginInput{Mobile: "13800138000", Code: "123456"}))
	})

	t.Run("reports json names", func(t *testing.T) {
		err := v.Validate(&loginInput{Mobile: "1380013", Code: "12a456"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "mobile must be exactly 11 characters")
		require.Contains(t, err.Error(), "code must contain only digits")
	})

	t.Run("numeric bounds", func(t *testing.T) {
		err := v.Validate(&relicHolder{ID: 0, Relics: []int{1, 2, 3, 4, 5, 6}})
		require.Error(t, err)
		require.Contains(t, err.Error(), "id must be greater than 0")
		require.Contains(t, err.Error(), "relics must be at most 5")
	})
}
