package itinerary

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Train No,Train Name,SEQ,Station Code,Station Name,Arrival time,Departure Time,Distance
'107,SWV-MAO-VLNK,1,SWV,SAWANTWADI ROAD,00:00:00,10:25:00,0
'107,SWV-MAO-VLNK,2,THVM,THIVIM,11:06:00,11:08:00,32
'107,SWV-MAO-VLNK,3,KRMI,KARMALI,11:28:00,11:30:00,49
'107,SWV-MAO-VLNK,4,MAO,MADGOAN JN.,12:30:00,00:00:00,78
'108,VLNK-MAO-SWV,1,MAO,MADGOAN JN.,00:00:00,20:30:00,0
'108,VLNK-MAO-SWV,x,KRMI,KARMALI,21:04:00,21:06:00,33
`

func TestParseCSV(t *testing.T) {
	lookup, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	stations, err := lookup.GetStations(context.Background(), "107")
	require.NoError(t, err)
	require.Len(t, stations, 4)

	assert.Equal(t, "SWV", stations[0].StationCode)
	assert.Equal(t, "SAWANTWADI ROAD", stations[0].StationName)
	assert.Equal(t, "SWV-MAO-VLNK", stations[0].TrainName)
	assert.Equal(t, 4, stations[3].SequenceNumber)

	// Rows with an unparsable sequence are skipped
	stations, err = lookup.GetStations(context.Background(), " 108 ")
	require.NoError(t, err)
	assert.Len(t, stations, 1)
}

func TestParseCSV_MissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Train No,Station Name\n107,THIVIM\n"))
	assert.Error(t, err)
}

func TestCSVLookup_UnknownTrain(t *testing.T) {
	lookup, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	stations, err := lookup.GetStations(context.Background(), "99999")
	require.NoError(t, err)
	assert.Empty(t, stations)
}

func TestCSVLookup_ReturnsCopy(t *testing.T) {
	lookup, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	first, _ := lookup.GetStations(context.Background(), "107")
	first[0].StationCode = "XXX"

	second, _ := lookup.GetStations(context.Background(), "107")
	assert.Equal(t, "SWV", second[0].StationCode)
}
