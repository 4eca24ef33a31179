package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsRecordBuildCountsSuccessAndError(t *testing.T) {
	var s Stats
	s.RecordBuild(nil)
	s.RecordBuild(nil)
	s.RecordBuild(errors.New("boom"))

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.FramesBuilt)
	assert.Equal(t, uint64(1), snap.BuildErrors)
}

func TestStatsRecordOverflow(t *testing.T) {
	var s Stats
	s.RecordOverflow()
	s.RecordOverflow()

	assert.Equal(t, uint64(2), s.Snapshot().OverflowCount)
}
