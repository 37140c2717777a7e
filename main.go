// Project Structure Overview
/*
commission-backend/
├── cmd/
│   └── server/
│       └── main.go
├── internal/
│   ├── apperrors/
│   │   └── errors.go
│   ├── config/
│   │   └── config.go
│   ├── database/
│   │   └── connection.go
│   ├── pricing/
│   │   ├── types.go
│   │   └── engine.go
│   ├── models/
│   │   ├── user.go
│   │   ├── listing.go
│   │   ├── proposal.go
│   │   ├── contract.go
│   │   ├── ticket.go
│   │   ├── transaction.go
│   │   ├── admin.go
│   │   └── common.go
│   ├── handlers/
│   │   ├── auth.go
│   │   ├── user.go
│   │   ├── listing.go
│   │   ├── proposal.go
│   │   ├── contract.go
│   │   ├── ticket.go
│   │   ├── payment.go
│   │   ├── admin.go
│   │   └── errors.go
│   ├── services/
│   │   ├── auth_service.go
│   │   ├── user_service.go
│   │   ├── listing_service.go
│   │   ├── proposal_service.go
│   │   ├── contract_service.go
│   │   ├── ticket_service.go
│   │   ├── resolution_service.go
│   │   ├── payment_service.go
│   │   ├── sweep_service.go
│   │   ├── admin_service.go
│   │   ├── storage_service.go
│   │   └── notification_service.go
│   ├── middleware/
│   │   ├── auth.go
│   │   ├── cors.go
│   │   ├── rate_limit.go
│   │   ├── i18n.go
│   │   └── logging.go
│   ├── i18n/
│   │   ├── i18n.go
│   │   ├── locales/
│   │   │   ├── en.json
│   │   │   └── zh_TW.json
│   │   └── keys.go
│   ├── utils/
│   │   ├── jwt.go
│   │   ├── validator.go
│   │   ├── crypto.go
│   │   ├── pagination.go
│   │   └── response.go
│   └── router/
│       └── router.go
├── go.mod
├── go.sum
└── README.md
*/

package commissionbackend

// This file shows the project structure and main entry point
// The actual implementation will be in separate files as shown in the structure above
