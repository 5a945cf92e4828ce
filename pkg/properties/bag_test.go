package properties_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/properties"
)

func TestBagKeepsLastWrittenValuePerKey(t *testing.T) {
	testCases := []struct {
		name     string
		writes   [][2]any
		expected map[string]any
	}{
		{
			name:     "distinct keys",
			writes:   [][2]any{{"Model", "Pixel"}, {"GPS enabled", true}, {"App Version Code", 12}},
			expected: map[string]any{"Model": "Pixel", "GPS enabled": true, "App Version Code": 12},
		},
		{
			name:     "repeated key overwrites",
			writes:   [][2]any{{"Model", "Pixel"}, {"Model", "Nexus"}},
			expected: map[string]any{"Model": "Nexus"},
		},
		{
			name:     "value type may change",
			writes:   [][2]any{{"WiFi enabled", "COMPLETED"}, {"WiFi enabled", false}},
			expected: map[string]any{"WiFi enabled": false},
		},
		{
			name:     "empty key is accepted",
			writes:   [][2]any{{"", "blank"}},
			expected: map[string]any{"": "blank"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			bag := properties.NewBag()
			for _, write := range testCase.writes {
				bag.Set(write[0].(string), write[1])
			}
			require.Equal(t, testCase.expected, bag.Snapshot())
			require.Equal(t, len(testCase.expected), bag.Len())
		})
	}
}

func TestBagManyDistinctKeys(t *testing.T) {
	bag := properties.NewBag()
	expected := make(map[string]any)
	for index := 0; index < 50; index++ {
		key := fmt.Sprintf("key-%02d", index)
		bag.Set(key, index)
		bag.Set(key, index*10)
		expected[key] = index * 10
	}
	require.Equal(t, expected, bag.Snapshot())
	require.Len(t, bag.Keys(), 50)
	require.Equal(t, "key-00", bag.Keys()[0])
}

func TestBagSnapshotIsIndependent(t *testing.T) {
	bag := properties.NewBag()
	bag.Set(properties.KeyModel, "Pixel")

	snapshot := bag.Snapshot()
	snapshot[properties.KeyModel] = "mutated"
	bag.Set(properties.KeyActivity, "MainActivity")

	value, found := bag.Get(properties.KeyModel)
	require.True(t, found)
	require.Equal(t, "Pixel", value)
	require.NotContains(t, snapshot, properties.KeyActivity)
}

func TestBagResetAndZeroValue(t *testing.T) {
	var bag properties.Bag
	require.NotNil(t, bag.Snapshot())
	require.Empty(t, bag.Snapshot())

	bag.Merge(map[string]any{"a": 1, "b": 2})
	require.Equal(t, 2, bag.Len())

	bag.Reset()
	require.Zero(t, bag.Len())
	_, found := bag.Get("a")
	require.False(t, found)
}
