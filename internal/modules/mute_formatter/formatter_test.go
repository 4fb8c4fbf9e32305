package muteformatter

import (
	"context"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	item, err := model.NewItemFromURL("https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	item.SetTitle("something")
	m, err := Formatter{}.Format(context.Background(), item)
	if m != nil || err != nil {
		t.Errorf("Format() = %v, %v; want nil, nil", m, err)
	}
}
