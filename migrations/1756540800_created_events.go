package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{
				Name:     "name",
				Required: true,
			},
			&core.TextField{
				Name: "description",
			},
			&core.DateField{
				Name:     "date",
				Required: true,
			},
			&core.TextField{
				Name: "time",
			},
			&core.TextField{
				Name: "location",
			},
			&core.SelectField{
				Name:      "category",
				Required:  true,
				MaxSelect: 1,
				Values: []string{
					"Conference",
					"Workshop",
					"Networking",
					"Concert",
					"Exhibition",
					"Sports",
				},
			},
			&core.NumberField{
				Name:     "capacity",
				Required: true,
				OnlyInt:  true,
				Min:      types.Pointer(1.0),
			},
			&core.NumberField{
				Name: "price",
				Min:  types.Pointer(0.0),
			},
			&core.URLField{
				Name: "image",
			},
			&core.RelationField{
				Name:         "creator",
				Required:     true,
				MaxSelect:    1,
				CollectionId: users.Id,
			},
			&core.RelationField{
				Name:         "attendees",
				Required:     true,
				MaxSelect:    100000,
				CollectionId: users.Id,
			},
		)

		// listing sorts ascending by date
		collection.AddIndex("idx_events_date", false, "date", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
