package repository

// Set bundles every repository so services can be wired with one value.
type Set struct {
	Users        *UserRepo
	Tokens       *TokenRepo
	Events       *EventRepo
	TicketTypes  *TicketTypeRepo
	Vouchers     *VoucherRepo
	Coupons      *CouponRepo
	Points       *PointRepo
	Transactions *TransactionRepo
	Attendees    *AttendeeRepo
	Dashboard    *DashboardRepo
}

func NewSet() *Set {
	return &Set{
		Users:        NewUserRepo(),
		Tokens:       NewTokenRepo(),
		Events:       NewEventRepo(),
		TicketTypes:  NewTicketTypeRepo(),
		Vouchers:     NewVoucherRepo(),
		Coupons:      NewCouponRepo(),
		Points:       NewPointRepo(),
		Transactions: NewTransactionRepo(),
		Attendees:    NewAttendeeRepo(),
		Dashboard:    NewDashboardRepo(),
	}
}
