package validators

import "go.mongodb.org/mongo-driver/bson"

// HallValidator covers only the fields bookings read. Halls are written by
// the catalogue service.
var HallValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "owner_id"},
		"additionalProperties": true,

		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"owner_id": bson.M{
				"bsonType": "objectId",
			},
			"booked_dates": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "date"},
			},
		},
	},
}

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "email", "role"},
		"additionalProperties": true,

		"properties": bson.M{
			"email": bson.M{
				"bsonType": "string",
			},
			"role": bson.M{
				"bsonType": "string",
				"enum":     []string{"owner", "consumer"},
			},
		},
	},
}
