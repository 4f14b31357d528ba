package stub

import "townsq/internal/domain/entity"

// Seed loads a small demo directory: two customers and three businesses with
// operator accounts, enough to exercise every messaging path.
func Seed(data *Dataset) {
	data.AddUser(entity.User{ID: "user-ana", Name: "Ana Cordero"})
	data.AddUser(entity.User{ID: "user-badr", Name: "Badr Haddadi"})
	data.AddUser(entity.User{ID: "op-brewline", Name: "Brewline Coffee"})
	data.AddUser(entity.User{ID: "op-fixit", Name: "FixIt Repairs"})
	data.AddUser(entity.User{ID: "op-petals", Name: "Petals & Stems"})

	data.AddBusiness(entity.Business{
		ID:       "biz-brewline",
		Name:     "Brewline Coffee",
		Slug:     "brewline-coffee",
		Category: "Cafe",
		City:     "Springfield",
		Address:  "12 Mill Road",
		Phone:    "+1-555-0131",
		Email:    "hello@brewline.example",
	}, "op-brewline")

	data.AddBusiness(entity.Business{
		ID:       "biz-fixit",
		Name:     "FixIt Repairs",
		Slug:     "fixit-repairs",
		Category: "Home Services",
		City:     "Springfield",
		Address:  "48 Harbor Street",
		Phone:    "+1-555-0178",
	}, "op-fixit")

	data.AddBusiness(entity.Business{
		ID:       "biz-petals",
		Name:     "Petals & Stems",
		Slug:     "petals-and-stems",
		Category: "Florist",
		City:     "Rivertown",
		Address:  "3 Orchard Lane",
		Email:    "orders@petals.example",
	}, "op-petals")

	data.AddService(entity.Service{ID: "svc-espresso-tasting", BusinessID: "biz-brewline", Name: "Espresso tasting", Duration: 30, Price: 1500})
	data.AddService(entity.Service{ID: "svc-boiler-checkup", BusinessID: "biz-fixit", Name: "Boiler checkup", Duration: 60, Price: 9000})
	data.AddService(entity.Service{ID: "svc-bouquet-consult", BusinessID: "biz-petals", Name: "Bouquet consultation", Duration: 20, Price: 0})
}
