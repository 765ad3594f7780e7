package transform

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsCSV = `id,name,category,launchdate,deleted
1,Anemometer,10,2023-04-01,N
2,Rain gauge,20,2023-05-12,N
3,Old barometer,10,2019-01-01,Y
4,Hygrometer,10,,N
5,Thermometer,20,01/06/2023,N
6,Wind vane,99,2023-07-01,N
`

const categoriesCSV = `id,name
10,Wind
20,Rain
`

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRun(t *testing.T) {
	t.Parallel()

	result, err := Run(context.Background(), strings.NewReader(productsCSV), strings.NewReader(categoriesCSV))
	require.NoError(t, err)

	assert.Equal(t, []Product{
		{ID: 1, ProductName: "Anemometer", LaunchDate: date(2023, 4, 1), CategoryName: "Wind"},
		{ID: 2, ProductName: "Rain gauge", LaunchDate: date(2023, 5, 12), CategoryName: "Rain"},
	}, result.Products)
	assert.Equal(t, []ErrorRow{
		{ID: "4", Name: "Hygrometer", Category: "10", LaunchDate: ""},
		{ID: "5", Name: "Thermometer", Category: "20", LaunchDate: "01/06/2023"},
	}, result.Errors)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Unmatched)
}

func TestRun_HeaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		products   string
		categories string
		contains   string
	}{
		{
			name:       "products missing columns",
			products:   "id,name\n1,x\n",
			categories: categoriesCSV,
			contains:   "launchdate",
		},
		{
			name:       "categories missing name",
			products:   productsCSV,
			categories: "id\n10\n",
			contains:   "name",
		},
		{
			name:       "empty products",
			products:   "",
			categories: categoriesCSV,
			contains:   "products header",
		},
		{
			name:       "bad category id",
			products:   productsCSV,
			categories: "id,name\nten,Wind\n",
			contains:   "ten",
		},
		{
			name:       "bad product id",
			products:   "id,name,category,launchdate,deleted\nx,Gauge,10,2023-01-01,N\n",
			categories: categoriesCSV,
			contains:   "invalid id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Run(context.Background(), strings.NewReader(tt.products), strings.NewReader(tt.categories))
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, strings.NewReader(productsCSV), strings.NewReader(categoriesCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorCSV(t *testing.T) {
	t.Parallel()

	data, err := ErrorCSV([]ErrorRow{{ID: "4", Name: "Hygrometer, digital", Category: "10"}})
	require.NoError(t, err)
	assert.Equal(t, "id,name,category,launchdate\n4,\"Hygrometer, digital\",10,\n", string(data))
}
