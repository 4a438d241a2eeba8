package core

// TransactionFields is the fixed schema of the destination table, in DDL
// order. Column names are the normalized dataset headers.
var TransactionFields = []FieldSpec{
	{Name: "transaction_id", Type: FieldUUID, PrimaryKey: true},
	{Name: "customer_id", Type: FieldUUID},
	{Name: "transaction_amount", Type: FieldNumeric},
	{Name: "transaction_date", Type: FieldTimestamp},
	{Name: "payment_method", Type: FieldText, MaxLen: 50},
	{Name: "product_category", Type: FieldText, MaxLen: 100},
	{Name: "quantity", Type: FieldInteger},
	{Name: "customer_age", Type: FieldInteger},
	{Name: "customer_location", Type: FieldText, MaxLen: 100},
	{Name: "device_used", Type: FieldText, MaxLen: 50},
	{Name: "ip_address", Type: FieldText, MaxLen: 50},
	{Name: "shipping_address", Type: FieldText},
	{Name: "billing_address", Type: FieldText},
	{Name: "is_fraudulent", Type: FieldFlag},
	{Name: "account_age_days", Type: FieldInteger},
	{Name: "transaction_hour", Type: FieldInteger},
}

// LookupField returns the FieldSpec for a column name.
func LookupField(fields []FieldSpec, name string) (FieldSpec, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// PrimaryKey returns the primary key column name, or "" if none is declared.
func PrimaryKey(fields []FieldSpec) string {
	for _, f := range fields {
		if f.PrimaryKey {
			return f.Name
		}
	}
	return ""
}
