package handler

import (
	"sync"
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestQuoteSortColumnsExistOnModel(t *testing.T) {
	s, err := schema.Parse(&model.Quote{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, col := range quoteSortColumns {
		_, ok := s.FieldsByDBName[col]
		require.True(t, ok, "sort column %q has no matching quotes column", col)
	}
}
