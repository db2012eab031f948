package models

// Store is the model for the 'stores' table.
// ShareLink is derived from the store ID at read time, it has no column.
type Store struct {
	ID           string  `json:"id" db:"id"`
	StoreName    string  `json:"storeName" db:"store_name"`
	ImageCID     *string `json:"imageCid,omitempty" db:"image_cid"`
	Description  *string `json:"description,omitempty" db:"description"`
	OwnerAddress string  `json:"ownerAddress" db:"owner_address"`
	ShareLink    string  `json:"shareLink" db:"-"`
}
