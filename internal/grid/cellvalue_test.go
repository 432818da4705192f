package grid

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCellValueEqual(t *testing.T) {
	assert.True(t, Blank.Equal(Blank))
	assert.True(t, NewText("hi").Equal(NewText("hi")))
	assert.False(t, NewText("hi").Equal(NewText("bye")))
	assert.True(t, NewNumberFromInt(5).Equal(NewNumber(decimal.NewFromInt(5))))
	assert.False(t, NewNumberFromInt(5).Equal(NewText("5")))
}

func TestCellValueLessCollapsesBlankToZero(t *testing.T) {
	assert.False(t, Less(Blank, NewNumberFromInt(-1)))
	assert.True(t, Less(Blank, NewNumberFromInt(1)))
	assert.True(t, Less(NewNumberFromInt(1), NewNumberFromInt(2)))
}

func TestCellValueString(t *testing.T) {
	assert.Equal(t, "", Blank.String())
	assert.Equal(t, "TRUE", NewLogical(true).String())
	assert.Equal(t, "hi", NewText("hi").String())
}
