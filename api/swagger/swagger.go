package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Management API",
        "description": "Departments, students, teachers, courses, enrollments and grading",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Departments", "description": "Department (filière) management"},
        {"name": "Students", "description": "Student records and dossiers"},
        {"name": "Teachers", "description": "Teaching staff management"},
        {"name": "Courses", "description": "Course catalog and capacity"},
        {"name": "Enrollments", "description": "Enrollment lifecycle and grading"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with username and password",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "responses": {
                    "200": {"description": "Token pair rotated"},
                    "401": {"description": "Token expired or revoked"}
                }
            }
        },
        "/departments": {
            "get": {
                "tags": ["Departments"],
                "summary": "List departments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Departments"],
                "summary": "Create a department",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Code or name already exists"}
                }
            }
        },
        "/departments/{id}": {
            "delete": {
                "tags": ["Departments"],
                "summary": "Delete an empty department",
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Department still has students, courses or teachers"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a student and issue their administrative dossier",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Email already in use"}
                }
            }
        },
        "/students/{id}": {
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student and all dependent records",
                "responses": {
                    "204": {"description": "Deleted"},
                    "500": {"description": "Consistency failure"}
                }
            }
        },
        "/students/{id}/transcript": {
            "get": {
                "tags": ["Students"],
                "summary": "Download the academic transcript as CSV or PDF",
                "responses": {"200": {"description": "Rendered file"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses with live enrollment counts",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Course code already exists"}
                }
            }
        },
        "/courses/{id}": {
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete a course without active or completed enrollments",
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Active or completed enrollments exist"}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student into a course of their department",
                "responses": {
                    "201": {"description": "Enrolled"},
                    "422": {"description": "Cross-department, duplicate, or course full"}
                }
            }
        },
        "/enrollments/{id}/drop": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Drop an active enrollment",
                "responses": {
                    "200": {"description": "Dropped"},
                    "422": {"description": "Enrollment is not active"}
                }
            }
        },
        "/enrollments/{id}/grade": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Assign the initial grade on a 0-20 scale",
                "responses": {
                    "200": {"description": "Graded"},
                    "400": {"description": "Grade out of range"},
                    "422": {"description": "Already graded or dropped"}
                }
            },
            "put": {
                "tags": ["Enrollments"],
                "summary": "Correct an existing grade with a justification",
                "responses": {
                    "200": {"description": "Corrected"},
                    "400": {"description": "Missing reason or grade out of range"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
