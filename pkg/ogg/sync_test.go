package ogg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

func TestSyncManagerNextPageSkipsGarbagePrefix(t *testing.T) {
	garbage := []byte("not an ogg stream at all, just junk bytes")
	page := buildSimplePage(flagBOS, 0, 1, 0, []byte("packet-one"))
	data := append(append([]byte{}, garbage...), page...)

	r := ioutil.NewMemoryReader(data)
	sm, err := NewSyncManager(r)
	require.NoError(t, err)

	got, skipped, err := sm.NextPage()
	require.NoError(t, err)
	require.Equal(t, int64(len(garbage)), skipped)
	require.Equal(t, int32(1), got.Serial)
	require.Equal(t, []byte("packet-one"), got.Data)
}

func TestSyncManagerNextPageCorruptPageIsSkipped(t *testing.T) {
	bad := buildSimplePage(0, 0, 1, 0, []byte("good page"))
	bad[len(bad)-1] ^= 0xFF // corrupt a data byte -> CRC mismatch
	good := buildSimplePage(0, 0, 2, 0, []byte("second page"))
	data := append(append([]byte{}, bad...), good...)

	r := ioutil.NewMemoryReader(data)
	sm, err := NewSyncManager(r)
	require.NoError(t, err)

	got, _, err := sm.NextPage()
	require.NoError(t, err)
	require.Equal(t, int32(2), got.Serial)
}

func TestSyncManagerMultiplePages(t *testing.T) {
	p1 := buildSimplePage(flagBOS, 0, 5, 0, []byte("first"))
	p2 := buildSimplePage(0, 100, 5, 1, []byte("second"))
	p3 := buildSimplePage(flagEOS, 200, 5, 2, []byte("third"))
	data := append(append(append([]byte{}, p1...), p2...), p3...)

	r := ioutil.NewMemoryReader(data)
	sm, err := NewSyncManager(r)
	require.NoError(t, err)

	for _, want := range [][]byte{[]byte("first"), []byte("second"), []byte("third")} {
		got, _, err := sm.NextPage()
		require.NoError(t, err)
		require.Equal(t, want, got.Data)
	}
}

func TestSyncManagerEndOfStreamWithoutCapture(t *testing.T) {
	r := ioutil.NewMemoryReader([]byte("no ogg page here"))
	sm, err := NewSyncManager(r)
	require.NoError(t, err)
	_, _, err = sm.NextPage()
	require.Error(t, err)
}

func TestSyncManagerResetRepositions(t *testing.T) {
	p1 := buildSimplePage(flagBOS, 0, 1, 0, []byte("a"))
	p2 := buildSimplePage(0, 0, 1, 1, []byte("b"))
	data := append(append([]byte{}, p1...), p2...)

	r := ioutil.NewMemoryReader(data)
	sm, err := NewSyncManager(r)
	require.NoError(t, err)

	_, _, err = sm.NextPage()
	require.NoError(t, err)

	require.NoError(t, sm.Reset(int64(len(p1))))
	got, _, err := sm.NextPage()
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got.Data)
}

func TestSyncManagerScanBackwardFindsLastPageForSerial(t *testing.T) {
	p1 := buildSimplePage(flagBOS, 0, 1, 0, []byte("s1-a"))
	p2 := buildSimplePage(0, 500, 1, 1, []byte("s1-b"))
	other := buildSimplePage(0, 999, 2, 0, []byte("s2-a"))
	data := append(append(append([]byte{}, p1...), other...), p2...)

	r := ioutil.NewMemoryReader(data)
	sm, err := NewSyncManager(r)
	require.NoError(t, err)

	page, err := sm.ScanBackward(int64(len(data)), 1)
	require.NoError(t, err)
	require.Equal(t, int64(500), page.Granule)
}
