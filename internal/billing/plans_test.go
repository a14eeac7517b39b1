package billing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() *PlanCatalog {
	return NewPlanCatalog(map[string]string{
		"initiate": "price_initiate",
		"warrior":  "price_warrior",
		"guardian": "",
	})
}

func TestPlanCatalogLookup(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		key       string
		wantPrice string
		wantOK    bool
	}{
		{"initiate", "price_initiate", true},
		{"warrior", "price_warrior", true},
		{"guardian", "", false}, // known key, no price id
		{"platinum", "", false},
		{"", "", false},
		{"Warrior", "", false},
		{" warrior", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			price, ok := c.Lookup(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPrice, price)
			assert.Equal(t, tt.wantOK, c.Configured(tt.key))
		})
	}
}

func TestPlanCatalogCopiesInput(t *testing.T) {
	prices := map[string]string{"warrior": "price_warrior"}
	c := NewPlanCatalog(prices)

	prices["warrior"] = "price_tampered"
	prices["platinum"] = "price_platinum"

	price, ok := c.Lookup("warrior")
	assert.True(t, ok)
	assert.Equal(t, "price_warrior", price)
	assert.False(t, c.Configured("platinum"))
}

func TestPlanCatalogKeys(t *testing.T) {
	c := testCatalog()

	assert.Equal(t, []string{"guardian", "initiate", "warrior"}, c.Keys())
	assert.Equal(t, []string{"guardian"}, c.Unconfigured())
	assert.Empty(t, NewPlanCatalog(nil).Unconfigured())
}

func TestPlanCatalogConcurrentReads(t *testing.T) {
	c := testCatalog()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Lookup("warrior")
				c.Keys()
			}
		}()
	}
	wg.Wait()
}
