package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionMapSetAndLookup(t *testing.T) {
	rm := NewRegionMap()
	loc := NewSheetLocation(SheetPos{Position: Position{X: 2, Y: 1}, Sheet: "s1"})
	region := SheetRect{Rect: NewRect(Position{X: 1, Y: 1}, Position{X: 1, Y: 3}), Sheet: "s1"}

	rm.SetRegionsForLoc(loc, []SheetRect{region})

	locs := rm.LocationsAssociatedWithRegion(SheetRect{Rect: SingleCell(Position{X: 1, Y: 2}), Sheet: "s1"})
	require.Len(t, locs, 1)
	assert.Equal(t, loc, locs[0])

	assert.True(t, rm.ForwardInverseAgree())
}

func TestRegionMapRemoveLocClearsBothIndexes(t *testing.T) {
	rm := NewRegionMap()
	loc := NewSheetLocation(SheetPos{Position: Position{X: 2, Y: 1}, Sheet: "s1"})
	region := SheetRect{Rect: SingleCell(Position{X: 1, Y: 1}), Sheet: "s1"}
	rm.SetRegionsForLoc(loc, []SheetRect{region})

	rm.RemoveLoc(loc)

	locs := rm.LocationsAssociatedWithRegion(region)
	assert.Empty(t, locs)
	assert.True(t, rm.ForwardInverseAgree())
}

func TestRegionMapRemoveSheetRemovesCrossSheetEdges(t *testing.T) {
	rm := NewRegionMap()
	// A code cell on sheet "main" reads a region on sheet "other".
	loc := NewSheetLocation(SheetPos{Position: Position{X: 1, Y: 1}, Sheet: "main"})
	region := SheetRect{Rect: SingleCell(Position{X: 1, Y: 1}), Sheet: "other"}
	rm.SetRegionsForLoc(loc, []SheetRect{region})

	rm.RemoveSheet("other")

	assert.Empty(t, rm.LocationsAssociatedWithRegion(region))
	assert.True(t, rm.ForwardInverseAgree())
}

func TestRegionMapEmbeddedLocationsFilteredFromPositions(t *testing.T) {
	rm := NewRegionMap()
	sheetLoc := NewSheetLocation(SheetPos{Position: Position{X: 2, Y: 1}, Sheet: "s1"})
	embedded := NewEmbeddedLocation(SheetPos{Position: Position{X: 10, Y: 10}, Sheet: "s1"}, 0, 1)
	region := SheetRect{Rect: SingleCell(Position{X: 1, Y: 1}), Sheet: "s1"}

	rm.SetRegionsForLoc(sheetLoc, []SheetRect{region})
	rm.SetRegionsForLoc(embedded, []SheetRect{region})

	positions := rm.PositionsAssociatedWithRegion(region)
	require.Len(t, positions, 1)
	assert.Equal(t, sheetLoc.Pos, positions[0])

	locations := rm.LocationsAssociatedWithRegion(region)
	assert.Len(t, locations, 2)
}
