package campaign

import (
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
)

func TestItemsSince(t *testing.T) {
	// Newest first, as feeds arrive.
	items := []*gofeed.Item{
		{GUID: "c", Title: "third"},
		{GUID: "b", Title: "second"},
		{GUID: "a", Title: "first"},
	}

	t.Run("unseen guid means everything is new", func(t *testing.T) {
		fresh := itemsSince(items, "")
		assert.Len(t, fresh, 3)
		assert.Equal(t, "first", fresh[0].Title)
		assert.Equal(t, "third", fresh[2].Title)
	})

	t.Run("only items above the marker", func(t *testing.T) {
		fresh := itemsSince(items, "b")
		assert.Len(t, fresh, 1)
		assert.Equal(t, "third", fresh[0].Title)
	})

	t.Run("marker at head means nothing new", func(t *testing.T) {
		assert.Empty(t, itemsSince(items, "c"))
	})
}

func TestItemGUIDFallsBackToLink(t *testing.T) {
	assert.Equal(t, "g1", itemGUID(&gofeed.Item{GUID: "g1", Link: "https://x/1"}))
	assert.Equal(t, "https://x/1", itemGUID(&gofeed.Item{Link: "https://x/1"}))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world", stripHTML("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "a & b", stripHTML("a &amp; b"))
}
