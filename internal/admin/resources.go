package admin

// Resources returns the storefront tables exposed in the panel. Nothing is
// deletable; orders and their items are read-only.
func Resources() []*Resource {
	return []*Resource{
		{
			Name:  "users",
			Title: "Users",
			Table: "users",
			Fields: []Field{
				{Column: "login", Label: "Login", Kind: KindText, Editable: true},
				{Column: "first_name", Label: "First name", Kind: KindText, Editable: true},
				{Column: "second_name", Label: "Second name", Kind: KindOptionalText, Editable: true},
				{Column: "last_name", Label: "Last name", Kind: KindText, Editable: true},
				{Column: "telephone_number", Label: "Telephone", Kind: KindOptionalText, Editable: true},
				{Column: "is_registered", Label: "Registered", Kind: KindBool, Editable: true},
			},
			CanEdit: true,
		},
		{
			Name:  "shipping-addresses",
			Title: "Shipping addresses",
			Table: "shipping_addresses",
			Fields: []Field{
				{Column: "country", Label: "Country", Kind: KindText, Editable: true},
				{Column: "city", Label: "City", Kind: KindText, Editable: true},
				{Column: "postcode", Label: "Postcode", Kind: KindText, Editable: true},
				{Column: "address", Label: "Address", Kind: KindText, Editable: true},
				{Column: "apartment", Label: "Apartment", Kind: KindOptionalText, Editable: true},
			},
			CanEdit: true,
		},
		{
			Name:  "categories",
			Title: "Product categories",
			Table: "product_categories",
			Fields: []Field{
				{Column: "name", Label: "Name", Kind: KindText, Editable: true},
				{Column: "description", Label: "Description", Kind: KindText, Editable: true},
			},
			CanCreate: true,
			CanEdit:   true,
		},
		{
			Name:  "characteristics",
			Title: "Characteristics",
			Table: "characteristics",
			Fields: []Field{
				{Column: "name", Label: "Name", Kind: KindText, Editable: true},
			},
			CanCreate: true,
			CanEdit:   true,
		},
		{
			Name:  "products",
			Title: "Products",
			Table: "products",
			Fields: []Field{
				{Column: "name", Label: "Name", Kind: KindText, Editable: true},
				{Column: "sku", Label: "SKU", Kind: KindText, Editable: true},
				{Column: "description", Label: "Description", Kind: KindText, Editable: true},
				{Column: "price", Label: "Price", Kind: KindDecimal, Editable: true},
				{Column: "category_id", Label: "Category", Kind: KindInt, Editable: true},
			},
			CanCreate:   true,
			CanEdit:     true,
			AfterInsert: `INSERT INTO product_inventory (product_id) VALUES ($1)`,
		},
		{
			Name:  "inventory",
			Title: "Product inventory",
			Table: "product_inventory",
			Fields: []Field{
				{Column: "product_id", Label: "Product", Kind: KindInt, Editable: true},
				{Column: "quantity", Label: "Quantity", Kind: KindCount, Editable: true},
			},
			CanCreate: true,
			CanEdit:   true,
		},
		{
			Name:  "product-characteristics",
			Title: "Product characteristics",
			Table: "product_characteristics",
			Fields: []Field{
				{Column: "product_id", Label: "Product", Kind: KindInt, Editable: true},
				{Column: "characteristic_id", Label: "Characteristic", Kind: KindInt, Editable: true},
				{Column: "characteristic_value", Label: "Value", Kind: KindText, Editable: true},
			},
			CanCreate: true,
			CanEdit:   true,
		},
		{
			Name:  "orders",
			Title: "Orders",
			Table: "orders",
			Fields: []Field{
				{Column: "creation_date", Label: "Created", Kind: KindTime},
				{Column: "total", Label: "Total", Kind: KindDecimal},
				{Column: "is_paid", Label: "Paid", Kind: KindBool},
				{Column: "is_processed", Label: "Processed", Kind: KindBool},
				{Column: "user_id", Label: "User", Kind: KindInt},
				{Column: "shipping_address_id", Label: "Shipping address", Kind: KindInt},
			},
		},
		{
			Name:  "order-items",
			Title: "Order items",
			Table: "order_items",
			Fields: []Field{
				{Column: "order_id", Label: "Order", Kind: KindInt},
				{Column: "product_id", Label: "Product", Kind: KindInt},
				{Column: "quantity", Label: "Quantity", Kind: KindCount},
				{Column: "price_per_item", Label: "Price per item", Kind: KindDecimal},
			},
		},
	}
}
