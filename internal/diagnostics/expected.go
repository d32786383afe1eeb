package diagnostics

import (
	"fmt"
	"strings"
)

const (
	ReferenceFunction = "generate_booking_reference"
	ReferenceTrigger  = "set_booking_reference"
	ChangeTrigger     = "notify_trip_bookings_changes"

	// DefaultChangeChannel is the REALTIME_CHANNEL default.
	DefaultChangeChannel = "trip_bookings_changes"
)

const referenceTriggerBody = `BEGIN
  IF NEW.reference_number IS NULL OR NEW.reference_number = '' THEN
    NEW.reference_number := public.generate_booking_reference();
  END IF;
  RETURN NEW;
END;`

// changeTriggerBody publishes {table,type,user_id,record} on channel %s.
const changeTriggerBody = `DECLARE
  row_data record;
BEGIN
  IF TG_OP = 'DELETE' THEN
    row_data := OLD;
  ELSE
    row_data := NEW;
  END IF;
  PERFORM pg_notify('%s', json_build_object(
    'table', TG_TABLE_NAME,
    'type', TG_OP,
    'user_id', row_data.user_id,
    'record', row_to_json(row_data)
  )::text);
  RETURN NULL;
END;`

func col(name, dataType, sqlType, constraints string, nullable bool) Column {
	return Column{Name: name, DataType: dataType, SQLType: sqlType, Constraints: constraints, Nullable: nullable}
}

func timestamps() []Column {
	return []Column{
		col("created_at", "timestamp with time zone", "timestamptz", "NOT NULL DEFAULT now()", false),
		col("updated_at", "timestamp with time zone", "timestamptz", "NOT NULL DEFAULT now()", false),
	}
}

func uuidKey() Column {
	return col("id", "uuid", "uuid", "PRIMARY KEY DEFAULT gen_random_uuid()", false)
}

// ExpectedSchema is the schema the API is written against, in dependency
// order so missing tables can be created top to bottom. Change notifications
// go to DefaultChangeChannel.
func ExpectedSchema() Schema {
	return ExpectedSchemaFor(DefaultChangeChannel)
}

// ExpectedSchemaFor is ExpectedSchema with booking changes published on
// channel.
func ExpectedSchemaFor(channel string) Schema {
	return Schema{
		Tables: []Table{
			{
				Name: "auth_users",
				Columns: append([]Column{
					uuidKey(),
					col("email", "text", "text", "NOT NULL UNIQUE", false),
					col("password_hash", "text", "text", "NOT NULL", false),
				}, timestamps()...),
			},
			{
				Name: "refresh_tokens",
				Columns: []Column{
					uuidKey(),
					col("user_id", "uuid", "uuid", "NOT NULL REFERENCES public.auth_users(id) ON DELETE CASCADE", false),
					col("token", "text", "text", "NOT NULL UNIQUE", false),
					col("expires_at", "timestamp with time zone", "timestamptz", "NOT NULL", false),
					col("revoked_at", "timestamp with time zone", "timestamptz", "", true),
					col("created_at", "timestamp with time zone", "timestamptz", "NOT NULL DEFAULT now()", false),
				},
			},
			{
				Name:       "user_profiles",
				RLSEnabled: true,
				Columns: append([]Column{
					col("id", "uuid", "uuid", "PRIMARY KEY REFERENCES public.auth_users(id) ON DELETE CASCADE", false),
					col("email", "text", "text", "NOT NULL", false),
					col("full_name", "text", "text", "", true),
					col("phone", "text", "text", "", true),
					col("experience_level", "text", "text", "DEFAULT 'beginner'", true),
					col("dietary_requirements", "text", "text", "", true),
					col("emergency_contact_name", "text", "text", "", true),
					col("emergency_contact_phone", "text", "text", "", true),
					col("travel_notes", "text", "text", "", true),
				}, timestamps()...),
			},
			{
				Name:       "trips",
				RLSEnabled: true,
				Columns: append([]Column{
					uuidKey(),
					col("title", "text", "text", "NOT NULL", false),
					col("slug", "text", "text", "NOT NULL UNIQUE", false),
					col("description", "text", "text", "", true),
					col("duration_days", "integer", "integer", "NOT NULL DEFAULT 1", false),
					col("difficulty", "text", "text", "NOT NULL DEFAULT 'moderate'", false),
					col("price", "numeric", "numeric(10,2)", "NOT NULL DEFAULT 0", false),
					col("region", "text", "text", "", true),
					col("is_active", "boolean", "boolean", "NOT NULL DEFAULT true", false),
				}, timestamps()...),
			},
			{
				Name:       "trip_bookings",
				RLSEnabled: true,
				Columns: append([]Column{
					uuidKey(),
					col("user_id", "uuid", "uuid", "NOT NULL REFERENCES public.user_profiles(id) ON DELETE CASCADE", false),
					col("trip_id", "uuid", "uuid", "NOT NULL REFERENCES public.trips(id)", false),
					col("reference_number", "text", "text", "UNIQUE", true),
					col("status", "text", "text", "NOT NULL DEFAULT 'saved'", false),
					col("payment_status", "text", "text", "NOT NULL DEFAULT 'pending'", false),
					col("participants", "integer", "integer", "NOT NULL DEFAULT 1", false),
					col("total_amount", "numeric", "numeric(10,2)", "NOT NULL DEFAULT 0", false),
					col("departure_date", "date", "date", "", true),
					col("return_date", "date", "date", "", true),
					col("special_requests", "text", "text", "", true),
				}, timestamps()...),
			},
			{
				Name:       "chat_messages",
				RLSEnabled: true,
				Columns: []Column{
					uuidKey(),
					col("booking_id", "uuid", "uuid", "NOT NULL REFERENCES public.trip_bookings(id) ON DELETE CASCADE", false),
					col("sender_id", "uuid", "uuid", "NOT NULL", false),
					col("sender_type", "text", "text", "NOT NULL", false),
					col("message", "text", "text", "NOT NULL", false),
					col("is_read", "boolean", "boolean", "NOT NULL DEFAULT false", false),
					col("attachment_url", "text", "text", "", true),
					col("created_at", "timestamp with time zone", "timestamptz", "NOT NULL DEFAULT now()", false),
				},
			},
			{
				Name:       "booking_payments",
				RLSEnabled: true,
				Columns: append([]Column{
					uuidKey(),
					col("booking_id", "uuid", "uuid", "NOT NULL REFERENCES public.trip_bookings(id) ON DELETE CASCADE", false),
					col("amount", "numeric", "numeric(10,2)", "NOT NULL", false),
					col("payment_status", "text", "text", "NOT NULL DEFAULT 'pending'", false),
					col("due_date", "date", "date", "", true),
					col("paid_at", "timestamp with time zone", "timestamptz", "", true),
				}, timestamps()...),
			},
			{
				Name:       "contact_inquiries",
				RLSEnabled: true,
				Columns: []Column{
					uuidKey(),
					col("first_name", "text", "text", "NOT NULL", false),
					col("last_name", "text", "text", "", true),
					col("email", "text", "text", "NOT NULL", false),
					col("phone", "text", "text", "", true),
					col("travel_dates", "text", "text", "", true),
					col("group_size", "text", "text", "", true),
					col("experience_level", "text", "text", "", true),
					col("tour_types", "ARRAY", "text[]", "NOT NULL DEFAULT '{}'", false),
					col("regions", "ARRAY", "text[]", "NOT NULL DEFAULT '{}'", false),
					col("message", "text", "text", "", true),
					col("created_at", "timestamp with time zone", "timestamptz", "NOT NULL DEFAULT now()", false),
				},
			},
		},
		Functions: []string{ReferenceFunction},
		Triggers: []Trigger{
			{
				Name:     ReferenceTrigger,
				Table:    "trip_bookings",
				Timing:   "BEFORE INSERT",
				Function: "set_booking_reference_number",
				Body:     referenceTriggerBody,
			},
			{
				Name:     ChangeTrigger,
				Table:    "trip_bookings",
				Timing:   "AFTER INSERT OR UPDATE OR DELETE",
				Function: "notify_trip_bookings_change",
				Body:     fmt.Sprintf(changeTriggerBody, strings.ReplaceAll(channel, "'", "''")),
			},
		},
	}
}
