package models

// User is the model for the 'users' table. Identity is the wallet
// address; everything else is optional profile data.
type User struct {
	ID            string  `json:"id" db:"id"`
	WalletAddress string  `json:"walletAddress" db:"wallet_address"`
	UserName      *string `json:"userName,omitempty" db:"user_name"`
	Email         *string `json:"email,omitempty" db:"email"`
	PhoneNumber   *string `json:"phoneNumber,omitempty" db:"phone_number"`
	HouseAddress  *string `json:"houseAddress,omitempty" db:"house_address"`
}
