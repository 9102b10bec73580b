package completionhelp

import (
	"testing"

	"github.com/lainio/err2/assert"
)

func TestScenarios(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	names := []string{"connection", "credential", "proof", "oob"}
	assert.DeepEqual(Scenarios(names, ""), names)
	assert.DeepEqual(Scenarios(names, "c"), []string{"connection", "credential"})
	assert.DeepEqual(Scenarios(names, "proof,"), []string{"proof,connection", "proof,credential", "proof,oob"})
	assert.DeepEqual(Scenarios(names, "proof,o"), []string{"proof,oob"})
	assert.SLen(Scenarios(names, "x"), 0)
}

func TestStorageLocations(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	locations := StorageLocations()
	assert.That(len(locations) >= 1)
	assert.Equal(locations[0], ".")
}
