package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"life.tape/internal/models"
	"life.tape/internal/timeline"
)

// ListOptions are the filters shared by timeline and darkside.
type ListOptions struct {
	Search string
	Tag    string
	Tagged bool
	Order  string
	ShowID bool
}

func addListArgs(cmd *cobra.Command, o *ListOptions) {
	cmd.Flags().StringVarP(&o.Search, "search", "s", "",
		"Only entries whose title, transcript or tag contains this text.")
	cmd.Flags().StringVarP(&o.Tag, "tag", "t", "",
		"Only entries with this tag.")
	cmd.Flags().BoolVar(&o.Tagged, "tagged", false,
		"Only entries that have a tag.")
	cmd.Flags().StringVarP(&o.Order, "order", "o", "newest",
		"Sort order: newest or oldest.")
	cmd.Flags().BoolVar(&o.ShowID, "ids", false,
		"Show entry ids.")
}

func (o *ListOptions) Query(side timeline.Side) (timeline.Query, error) {
	order, err := timeline.ParseOrder(o.Order)
	if err != nil {
		return timeline.Query{}, err
	}
	return timeline.Query{
		Side:   side,
		Search: o.Search,
		Tag:    strings.TrimPrefix(o.Tag, "#"),
		Tagged: o.Tagged,
		Order:  order,
	}, nil
}

// findEntry resolves an id or a unique id prefix.
func findEntry(entries []models.Entry, id string) (models.Entry, error) {
	var match []models.Entry
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			match = append(match, e)
		}
	}
	switch len(match) {
	case 0:
		return models.Entry{}, fmt.Errorf("no entry %q", id)
	case 1:
		return match[0], nil
	default:
		return models.Entry{}, fmt.Errorf("%q matches %d entries", id, len(match))
	}
}
