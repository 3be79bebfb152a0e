package services

import "Gin_postgres_redis_loan_tracker/models"

// Actor is re-exported so callers of this package rarely need models.
type Actor = models.Actor

// System acts for the CLI and startup bootstrap. Its audit identity is "System".
var System = Actor{UserID: models.SystemActor, Role: models.RoleAdministrator}
