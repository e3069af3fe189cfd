package i18n

var catalogs = map[string]map[string]string{
	English: {
		"login.success":              "Login successful.",
		"login.invalid_credentials":  "The provided credentials are incorrect.",
		"logout.success":             "Successfully logged out.",
		"token.refreshed":            "Token refreshed successfully.",
		"token.created":              "Personal access token created successfully.",
		"password.updated":           "Password updated successfully.",
		"password.current_incorrect": "Current password is incorrect.",

		"attendance.checked_in":         "Check-in successful.",
		"attendance.checked_out":        "Check-out successful.",
		"attendance.already_checked_in": "You already have an open attendance record.",
		"attendance.no_open_attendance": "No open attendance record found.",
		"attendance.deleted":            "Attendance record deleted successfully.",
		"attendance.not_found":          "Attendance record not found.",

		"employee.deleted":           "Employee deleted successfully.",
		"employee.not_found":         "Employee not found.",
		"employee.password_reset":    "Employee password reset successfully. The employee must set a new password on next login.",
		"employee.locations_updated": "Employee locations updated successfully.",

		"location.deleted":   "Location deleted successfully.",
		"location.not_found": "Location not found.",

		"user.not_found":       "User not found.",
		"role.not_found":       "Role not found.",
		"permission.not_found": "Permission not found.",
		"roles.assigned":       "Role assigned successfully.",
		"roles.revoked":        "Role removed successfully.",
		"roles.synced":         "Roles synced successfully.",
		"permissions.assigned": "Permission granted successfully.",
		"permissions.revoked":  "Permission revoked successfully.",

		"report.export_queued": "Report export queued.",
		"report.not_found":     "Report export not found.",

		"too_many_requests": "Too many requests. Please try again later.",
		"unauthorized":      "Unauthenticated.",
		"forbidden":         "This action is unauthorized.",
		"not_found":         "Resource not found.",
		"validation_failed": "The given data was invalid.",
		"server_error":      "Internal server error.",

		"validation.required":         "The %s field is required.",
		"validation.invalid":          "The %s field is invalid.",
		"validation.between":          "The %s field is out of range.",
		"validation.min":              "The %s field is too short.",
		"validation.max":              "The %s field is too long.",
		"validation.email":            "The %s field must be a valid email address.",
		"validation.unique":           "The %s has already been taken.",
		"validation.exists":           "The selected %s is invalid.",
		"validation.after":            "The %s must be a date after check in.",
		"validation.after_or_equal":   "The %s must be a date after or equal to start date.",
		"validation.date":             "The %s is not a valid date.",
		"validation.confirmed":        "The %s confirmation does not match.",
		"validation.current_password": "The %s is incorrect.",
	},
	Spanish: {
		"login.success":              "Inicio de sesión exitoso.",
		"login.invalid_credentials":  "Las credenciales proporcionadas son incorrectas.",
		"logout.success":             "Sesión cerrada exitosamente.",
		"token.refreshed":            "Token renovado exitosamente.",
		"token.created":              "Token de acceso personal creado exitosamente.",
		"password.updated":           "Contraseña actualizada exitosamente.",
		"password.current_incorrect": "La contraseña actual es incorrecta.",

		"attendance.checked_in":         "Entrada registrada exitosamente.",
		"attendance.checked_out":        "Salida registrada exitosamente.",
		"attendance.already_checked_in": "Ya tienes un registro de asistencia abierto.",
		"attendance.no_open_attendance": "No se encontró un registro de asistencia abierto.",
		"attendance.deleted":            "Registro de asistencia eliminado exitosamente.",
		"attendance.not_found":          "Registro de asistencia no encontrado.",

		"employee.deleted":           "Empleado eliminado exitosamente.",
		"employee.not_found":         "Empleado no encontrado.",
		"employee.password_reset":    "Contraseña del empleado reseteada correctamente. El empleado deberá establecer una nueva contraseña en su próximo ingreso.",
		"employee.locations_updated": "Ubicaciones del empleado actualizadas exitosamente.",

		"location.deleted":   "Ubicación eliminada exitosamente.",
		"location.not_found": "Ubicación no encontrada.",

		"user.not_found":       "Usuario no encontrado.",
		"role.not_found":       "Rol no encontrado.",
		"permission.not_found": "Permiso no encontrado.",
		"roles.assigned":       "Rol asignado exitosamente.",
		"roles.revoked":        "Rol removido exitosamente.",
		"roles.synced":         "Roles sincronizados exitosamente.",
		"permissions.assigned": "Permiso otorgado exitosamente.",
		"permissions.revoked":  "Permiso revocado exitosamente.",

		"report.export_queued": "Exportación de reporte en cola.",
		"report.not_found":     "Exportación de reporte no encontrada.",

		"too_many_requests": "Demasiadas solicitudes. Intente de nuevo más tarde.",
		"unauthorized":      "No autenticado.",
		"forbidden":         "Acceso prohibido.",
		"not_found":         "Recurso no encontrado.",
		"validation_failed": "La validación falló.",
		"server_error":      "Error interno del servidor.",

		"validation.required":         "El campo %s es obligatorio.",
		"validation.invalid":          "El campo %s no es válido.",
		"validation.between":          "El campo %s está fuera de rango.",
		"validation.min":              "El campo %s es demasiado corto.",
		"validation.max":              "El campo %s es demasiado largo.",
		"validation.email":            "El campo %s debe ser un correo válido.",
		"validation.unique":           "El valor de %s ya está en uso.",
		"validation.exists":           "El %s seleccionado no es válido.",
		"validation.after":            "El campo %s debe ser una fecha posterior a la entrada.",
		"validation.after_or_equal":   "El campo %s debe ser una fecha igual o posterior a la fecha de inicio.",
		"validation.date":             "El campo %s no es una fecha válida.",
		"validation.confirmed":        "La confirmación de %s no coincide.",
		"validation.current_password": "El campo %s es incorrecto.",
	},
}
